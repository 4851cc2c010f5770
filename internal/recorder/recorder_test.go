package recorder_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/tupyy/rigctl/internal/recorder"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)

func readLines(g *WithT, path string) []string {
	data, err := os.ReadFile(path)
	g.Expect(err).To(BeNil())
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestHeaderOnFirstWrite(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "run.txt")
	columns := []string{"mfc_n2_Soll", "mfc_n2_Ist", "tc_1"}

	r := recorder.New(path, recorder.DefaultRetryConfig())
	g.Expect(r.Write(t0, columns, []string{"12.5", "12.4", "21"})).To(Succeed())

	lines := readLines(g, path)
	g.Expect(lines).To(HaveLen(3))
	g.Expect(lines[0]).To(Equal("### Device Names"))
	g.Expect(lines[1]).To(Equal("Zeitpunkt\tmfc_n2_Soll\tmfc_n2_Ist\ttc_1"))
	g.Expect(lines[2]).To(Equal("2024-03-01 10:00:00.123456\t12.5\t12.4\t21"))

	g.Expect(r.Write(t0.Add(time.Second), columns, []string{"12.5", "12.5", "22"})).To(Succeed())

	lines = readLines(g, path)
	g.Expect(lines).To(HaveLen(4))
	g.Expect(lines[3]).To(Equal("2024-03-01 10:00:01.123456\t12.5\t12.5\t22"))
}

func TestHeaderAfterNewRunAndDestination(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")

	r := recorder.New(first, recorder.DefaultRetryConfig())
	g.Expect(r.Write(t0, []string{"x"}, []string{"1"})).To(Succeed())
	r.NewRun()
	g.Expect(r.Write(t0, []string{"x"}, []string{"2"})).To(Succeed())
	g.Expect(readLines(g, first)).To(HaveLen(6))

	// same destination keeps the header state
	r.SetDestination(first)
	g.Expect(r.Write(t0, []string{"x"}, []string{"3"})).To(Succeed())
	g.Expect(readLines(g, first)).To(HaveLen(7))

	r.SetDestination(second)
	g.Expect(r.Destination()).To(Equal(second))
	g.Expect(r.Write(t0, []string{"x"}, []string{"4"})).To(Succeed())
	g.Expect(readLines(g, second)).To(Equal([]string{"### Device Names", "Zeitpunkt\tx", "2024-03-01 10:00:00.123456\t4"}))
}

func TestWriteFailureIsRetriedLater(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "run.txt")

	r := recorder.New(path, recorder.RetryConfig{InitialInterval: 2 * time.Second, Multiplier: 2, MaxInterval: time.Minute})

	err := r.Write(t0, []string{"x"}, []string{"1"})
	var perr *recorder.PersistenceError
	g.Expect(errors.As(err, &perr)).To(BeTrue())
	g.Expect(perr.Path).To(Equal(path))

	g.Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())

	// the next save is too early
	err = r.Write(t0.Add(100*time.Millisecond), []string{"x"}, []string{"2"})
	g.Expect(errors.Is(err, recorder.ErrRetryPending)).To(BeTrue())

	g.Expect(r.Write(t0.Add(10*time.Second), []string{"x"}, []string{"3"})).To(Succeed())
	lines := readLines(g, path)
	g.Expect(lines).To(HaveLen(3))
	g.Expect(lines[2]).To(HaveSuffix("\t3"))
}

func TestNoDestination(t *testing.T) {
	g := NewWithT(t)

	r := recorder.New("", recorder.DefaultRetryConfig())
	err := r.Write(t0, nil, nil)
	g.Expect(errors.Is(err, recorder.ErrNoDestination)).To(BeTrue())
}

func TestValuesStayInTheirColumn(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "run.txt")

	r := recorder.New(path, recorder.DefaultRetryConfig())
	g.Expect(r.Write(t0, []string{"note"}, []string{"a\tb\nc"})).To(Succeed())
	g.Expect(readLines(g, path)[2]).To(HaveSuffix("\ta b c"))
}
