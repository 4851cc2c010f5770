package dispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tupyy/rigctl/internal/configuration/interpreter"
	"github.com/tupyy/rigctl/internal/device"
	"github.com/tupyy/rigctl/internal/dispatch"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/metrics"
	"github.com/tupyy/rigctl/internal/recorder"
	"github.com/tupyy/rigctl/internal/registry"
	"github.com/tupyy/rigctl/internal/regulator"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mfcOut    = entity.Port{Device: "ao", Channel: 0}
	mfcIn     = entity.Port{Device: "ai", Channel: 0}
	heaterOut = entity.Port{Device: "ao", Channel: 1}
	directOut = entity.Port{Device: "ao", Channel: 2}
	tcIn      = entity.Port{Device: "tc", Channel: 0}
	valveOut  = entity.Port{Device: "dio", Channel: 0}
)

type fakeProfiles struct {
	source  string
	profile entity.Profile
	err     error
}

func (f *fakeProfiles) SetSource(path string) { f.source = path }

func (f *fakeProfiles) Source() string { return f.source }

func (f *fakeProfiles) Load() (entity.Profile, error) { return f.profile, f.err }

func (f *fakeProfiles) LoadFile(path string) (entity.Profile, error) {
	p := f.profile
	p.Source = path
	return p, f.err
}

type fakeJournal struct {
	runs []history.Run
}

func (f *fakeJournal) Record(r history.Run) { f.runs = append(f.runs, r) }

func (f *fakeJournal) last() history.Run { return f.runs[len(f.runs)-1] }

type fakeObserver struct {
	snapshots []entity.Snapshot
}

func (f *fakeObserver) Observe(s entity.Snapshot) { f.snapshots = append(f.snapshots, s) }

func recipe() entity.Profile {
	return entity.Profile{
		Source: "recipe.xlsx",
		Header: []string{"heater", "valve_1"},
		Segments: []entity.Segment{
			{Row: 4, RawDuration: "60", Targets: map[string]entity.Target{
				"heater":  entity.Ramp(100, 200),
				"valve_1": entity.LiteralCell("open"),
			}},
			{Row: 5, RawDuration: "30", Targets: map[string]entity.Target{
				"heater":  entity.Fixed(50),
				"valve_1": entity.LiteralCell(""),
			}},
		},
	}
}

func newRig() *registry.Registry {
	inhibit, err := interpreter.New("heater_direct > 0")
	Expect(err).To(BeNil())

	r := registry.New()
	Expect(r.Add(&registry.Channel{
		Name:    "mfc_n2",
		Unit:    "ml/min",
		Binding: registry.NewRawBinding(mfcOut, mfcIn, entity.Identity()),
	})).To(Succeed())
	Expect(r.Add(&registry.Channel{
		Name: "heater",
		Unit: "°C",
		Binding: &registry.ControllerBinding{
			Controller: regulator.NewPI("heater", regulator.PIConfig{GainP: 0.0078125}),
			Output:     heaterOut,
			OutputType: entity.AnalogMilliAmpOutput,
			Feedback:   "tc_1",
			Inhibit:    inhibit,
		},
	})).To(Succeed())
	Expect(r.Add(&registry.Channel{
		Name: "heater_direct",
		Binding: &registry.ControllerBinding{
			Controller: regulator.NewDirect("heater_direct", 2000),
			Output:     directOut,
			Power:      2000,
		},
	})).To(Succeed())
	Expect(r.Add(&registry.Channel{
		Name:    "tc_1",
		Unit:    "°C",
		Binding: registry.NewSensorBinding(tcIn, entity.Identity()),
	})).To(Succeed())
	Expect(r.Add(&registry.Channel{
		Name:    "valve_1",
		Binding: &registry.ValveBinding{Output: valveOut},
	})).To(Succeed())
	return r
}

func channel(s entity.Snapshot, name string) entity.ChannelStatus {
	for _, c := range s.Channels {
		if c.Name == name {
			return c
		}
	}
	Fail("channel not in snapshot: " + name)
	return entity.ChannelStatus{}
}

func output(bank *device.Bank, p entity.Port) float64 {
	v, ok := bank.Output(p)
	Expect(ok).To(BeTrue(), "nothing written to %s", p)
	return v
}

var _ = Describe("dispatch loop", func() {
	var (
		ctx      context.Context
		rig      *registry.Registry
		bank     *device.Bank
		profiles *fakeProfiles
		rec      *recorder.Recorder
		journal  *fakeJournal
		observer *fakeObserver
		loop     *dispatch.Loop
		logDir   string
	)

	BeforeEach(func() {
		var err error
		logDir, err = os.MkdirTemp("", "dispatch")
		Expect(err).To(BeNil())

		ctx = context.Background()
		rig = newRig()
		bank = device.NewBank()
		bank.Link(mfcOut, mfcIn)
		bank.AddInput(tcIn, 20)

		profiles = &fakeProfiles{profile: recipe()}
		rec = recorder.New(filepath.Join(logDir, "run.log"), recorder.DefaultRetryConfig())
		journal = &fakeJournal{}
		observer = &fakeObserver{}

		loop = dispatch.New(rig, bank, profiles, rec, dispatch.DefaultOptions(),
			dispatch.WithJournal(journal),
			dispatch.WithObserver(observer),
			dispatch.WithMetrics(metrics.New()),
		)
	})

	AfterEach(func() {
		os.RemoveAll(logDir)
	})

	Context("profile run", func() {
		It("follows the ramp and commits the controller output", func() {
			Expect(loop.StartProfile("")).To(Succeed())

			loop.Tick(ctx, t0)
			s := loop.Snapshot()
			Expect(s.Run).ToNot(BeNil())
			Expect(s.Run.Segment).To(Equal(0))
			Expect(s.Run.Segments).To(Equal(2))
			Expect(s.Recording).To(BeTrue())

			heater := channel(s, "heater")
			Expect(*heater.Soll).To(BeNumerically("~", 100, 1e-9))
			Expect(heater.State).To(Equal(entity.RunningState.String()))
			// out = 0.0078125 * (100 - 20)
			Expect(*heater.Out).To(Equal(0.625))
			Expect(output(bank, heaterOut)).To(Equal(14000.0))
			Expect(output(bank, valveOut)).To(Equal(1.0))

			loop.Tick(ctx, t0.Add(30*time.Second))
			s = loop.Snapshot()
			Expect(*channel(s, "heater").Soll).To(BeNumerically("~", 150, 1e-9))
			Expect(output(bank, heaterOut)).To(Equal(20000.0))
			Expect(s.Run.SegmentRemaining).To(BeNumerically("~", 30, 1e-9))

			Expect(observer.snapshots).To(HaveLen(2))
			Expect(journal.runs).To(HaveLen(1))
			Expect(journal.runs[0].Reason).To(BeEmpty())
		})

		It("stops the run at the end of the profile and leaves controllers running", func() {
			Expect(loop.StartProfile("")).To(Succeed())

			loop.Tick(ctx, t0)
			loop.Tick(ctx, t0.Add(61*time.Second))
			Expect(loop.Snapshot().Run.Segment).To(Equal(1))
			// the empty valve cell keeps the valve open
			Expect(*channel(loop.Snapshot(), "valve_1").Open).To(BeTrue())

			loop.Tick(ctx, t0.Add(70*time.Second))
			Expect(*channel(loop.Snapshot(), "heater").Soll).To(Equal(50.0))

			loop.Tick(ctx, t0.Add(92*time.Second))
			s := loop.Snapshot()
			Expect(s.Run).To(BeNil())
			Expect(s.Recording).To(BeFalse())

			heater := channel(s, "heater")
			Expect(heater.State).To(Equal(entity.RunningState.String()))
			Expect(*heater.Soll).To(Equal(50.0))

			Expect(journal.runs).To(HaveLen(2))
			Expect(journal.last().Reason).To(Equal("end_of_profile"))
			Expect(journal.last().Ended).To(Equal(t0.Add(92 * time.Second)))
			Expect(journal.last().ID).To(Equal(journal.runs[0].ID))

			// the last scheduled targets are kept
			loop.Tick(ctx, t0.Add(100*time.Second))
			Expect(*channel(loop.Snapshot(), "heater").Soll).To(Equal(50.0))
			Expect(output(bank, valveOut)).To(Equal(1.0))
		})

		It("stops the run when the run time elapses", func() {
			p := recipe()
			p.Segments[0].RawDuration = "600"
			p.RunTime = time.Minute
			profiles.profile = p

			Expect(loop.StartProfile("")).To(Succeed())
			loop.Tick(ctx, t0)
			Expect(*loop.Snapshot().Run.RunTimeLeft).To(BeNumerically("~", 60, 1e-9))

			loop.Tick(ctx, t0.Add(61*time.Second))
			Expect(loop.Snapshot().Run).To(BeNil())
			Expect(journal.last().Reason).To(Equal("run_time"))
		})

		It("skips a segment with an invalid duration", func() {
			p := recipe()
			p.Segments[0].RawDuration = "soon"
			profiles.profile = p

			Expect(loop.StartProfile("")).To(Succeed())
			loop.Tick(ctx, t0)
			Expect(loop.Snapshot().Run.Segment).To(Equal(1))

			loop.Tick(ctx, t0.Add(time.Second))
			Expect(*channel(loop.Snapshot(), "heater").Soll).To(Equal(50.0))
		})

		It("selects the profile source when started with a path", func() {
			Expect(loop.StartProfile("/recipes/b.csv")).To(Succeed())
			loop.Tick(ctx, t0)

			s := loop.Snapshot()
			Expect(s.ProfileSource).To(Equal("/recipes/b.csv"))
			Expect(s.Run.Profile).To(Equal("/recipes/b.csv"))
		})

		It("refuses profiles which cannot be started", func() {
			profiles.profile = entity.Profile{Header: []string{"heater"}}
			Expect(errors.Is(loop.StartProfile(""), dispatch.ErrEmptyProfile)).To(BeTrue())

			profiles.err = errors.New("no such file")
			Expect(loop.StartProfile("")).To(MatchError("no such file"))

			loop.Tick(ctx, t0)
			Expect(loop.Snapshot().Run).To(BeNil())
		})
	})

	Context("operator targets", func() {
		It("are followed only by channels without a profile column", func() {
			Expect(loop.ApplyManualValues(map[string]string{"mfc_n2": "12,5", "heater": "300"})).To(Succeed())
			Expect(loop.StartProfile("")).To(Succeed())

			loop.Tick(ctx, t0)
			Expect(*channel(loop.Snapshot(), "heater").Soll).To(Equal(100.0))
			Expect(output(bank, mfcOut)).To(Equal(12.5))

			Expect(loop.ApplyManualValues(map[string]string{"heater": "75"})).To(Succeed())
			loop.Tick(ctx, t0.Add(time.Second))
			Expect(*channel(loop.Snapshot(), "heater").Soll).To(BeNumerically(">", 100))
			Expect(*channel(loop.Snapshot(), "mfc_n2").Value).To(Equal(12.5))

			// an edit made during the run wins once the run is stopped
			loop.StopProfile()
			loop.Tick(ctx, t0.Add(2*time.Second))
			s := loop.Snapshot()
			Expect(s.Run).To(BeNil())
			Expect(*channel(s, "heater").Soll).To(Equal(75.0))
			Expect(channel(s, "heater").State).To(Equal(entity.RunningState.String()))
			Expect(journal.last().Reason).To(Equal("stopped"))
		})

		It("rejects unknown and read-only channels", func() {
			err := loop.ApplyManualValues(map[string]string{"nope": "1"})
			Expect(errors.Is(err, registry.ErrUnknownChannel)).To(BeTrue())

			err = loop.ApplyManualValues(map[string]string{"tc_1": "1"})
			Expect(errors.Is(err, registry.ErrReadOnly)).To(BeTrue())
		})

		It("never start a controller with an empty value", func() {
			Expect(loop.ApplyManualValues(map[string]string{"heater": " "})).To(Succeed())
			loop.Tick(ctx, t0)
			Expect(channel(loop.Snapshot(), "heater").State).To(Equal(entity.StoppedState.String()))
			// a stopped controller drives the bottom of the 4-20 mA range
			Expect(output(bank, heaterOut)).To(Equal(4000.0))
		})

		It("keeps a controller stopped by the operator until a new target arrives", func() {
			Expect(loop.ApplyManualValues(map[string]string{"heater": "80"})).To(Succeed())
			loop.Tick(ctx, t0)
			Expect(channel(loop.Snapshot(), "heater").State).To(Equal(entity.RunningState.String()))

			Expect(loop.StopController("heater")).To(Succeed())
			loop.Tick(ctx, t0.Add(time.Second))
			loop.Tick(ctx, t0.Add(2*time.Second))
			Expect(channel(loop.Snapshot(), "heater").State).To(Equal(entity.StoppedState.String()))
			Expect(output(bank, heaterOut)).To(Equal(4000.0))

			Expect(loop.ApplyManualValues(map[string]string{"heater": "90"})).To(Succeed())
			loop.Tick(ctx, t0.Add(3*time.Second))
			heater := channel(loop.Snapshot(), "heater")
			Expect(heater.State).To(Equal(entity.RunningState.String()))
			Expect(*heater.Soll).To(Equal(90.0))

			Expect(errors.Is(loop.StopController("tc_1"), dispatch.ErrNotController)).To(BeTrue())
			Expect(errors.Is(loop.StopController("nope"), registry.ErrUnknownChannel)).To(BeTrue())
		})
	})

	Context("interlock", func() {
		It("holds the controller while the condition is true", func() {
			Expect(loop.ApplyManualValues(map[string]string{"heater": "100", "heater_direct": "50"})).To(Succeed())
			loop.Tick(ctx, t0)
			Expect(channel(loop.Snapshot(), "heater").Inhibited).To(BeFalse())
			Expect(*channel(loop.Snapshot(), "heater_direct").Display).To(BeNumerically("~", 1000, 1e-9))

			loop.Tick(ctx, t0.Add(time.Second))
			Expect(channel(loop.Snapshot(), "heater").Inhibited).To(BeTrue())

			Expect(loop.ApplyManualValues(map[string]string{"heater_direct": "0"})).To(Succeed())
			loop.Tick(ctx, t0.Add(2*time.Second))
			loop.Tick(ctx, t0.Add(3*time.Second))
			Expect(channel(loop.Snapshot(), "heater").Inhibited).To(BeFalse())
		})
	})

	Context("recording", func() {
		readLog := func() []string {
			data, err := os.ReadFile(rec.Destination())
			Expect(err).To(BeNil())
			return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
		}

		It("writes the header once and a record every save interval", func() {
			Expect(loop.StartProfile("")).To(Succeed())

			loop.Tick(ctx, t0)
			loop.Tick(ctx, t0.Add(500*time.Millisecond))
			lines := readLog()
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(Equal("### Device Names"))
			Expect(lines[1]).To(Equal("Zeitpunkt\tmfc_n2_Soll\tmfc_n2_Ist\theater_Soll\theater_Output\theater_direct_Soll\theater_direct_Output\ttc_1\tvalve_1"))
			Expect(lines[2]).To(HavePrefix(t0.Format(recorder.TimeLayout) + "\t"))
			Expect(strings.Split(lines[2], "\t")).To(Equal([]string{t0.Format(recorder.TimeLayout), "", "0", "100", "62.5", "0", "0", "20", "1"}))

			loop.Tick(ctx, t0.Add(time.Second))
			Expect(readLog()).To(HaveLen(4))

			loop.StopProfile()
			loop.Tick(ctx, t0.Add(3*time.Second))
			Expect(readLog()).To(HaveLen(4))
		})

		It("starts a new header block after the destination changes", func() {
			loop.SetRecording(true)
			loop.Tick(ctx, t0)
			Expect(readLog()).To(HaveLen(3))

			loop.SelectLogDestination(filepath.Join(logDir, "other.log"))
			loop.Tick(ctx, t0.Add(time.Second))
			Expect(loop.Snapshot().LogDestination).To(HaveSuffix("other.log"))
			Expect(readLog()).To(HaveLen(3))
			Expect(readLog()[0]).To(Equal("### Device Names"))
		})
	})

	Context("device failures", func() {
		It("keep the last value and never stop the loop", func() {
			ctrl := gomock.NewController(GinkgoT())
			io := device.NewMockIO(ctrl)

			io.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
			io.EXPECT().Read(gomock.Any(), "ai", 0).Return(0.0, nil).AnyTimes()
			first := io.EXPECT().Read(gomock.Any(), "tc", 0).Return(21.0, nil).Times(1)
			io.EXPECT().Read(gomock.Any(), "tc", 0).Return(0.0, errors.New("bus timeout")).After(first).AnyTimes()

			l := dispatch.New(newRig(), io, profiles, rec, dispatch.DefaultOptions())
			l.Tick(ctx, t0)
			Expect(*channel(l.Snapshot(), "tc_1").Value).To(Equal(21.0))

			l.Tick(ctx, t0.Add(time.Second))
			l.Tick(ctx, t0.Add(2*time.Second))
			s := l.Snapshot()
			Expect(s.Tick).To(Equal(uint64(3)))
			Expect(*channel(s, "tc_1").Value).To(Equal(21.0))
		})
	})

	It("ticks until the context is cancelled", func() {
		options := dispatch.DefaultOptions()
		options.TickPeriod = 5 * time.Millisecond
		l := dispatch.New(rig, bank, profiles, rec, options, dispatch.WithJournal(journal))

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- l.Run(runCtx)
		}()

		Eventually(func() uint64 { return l.Snapshot().Tick }).Should(BeNumerically(">=", 3))
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
