package profile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tupyy/rigctl/internal/entity"
	"go.uber.org/zap"
)

const (
	// DefaultSheet is the sheet holding the recipe in a workbook.
	DefaultSheet = "Ablauf"
	// DefaultStartRow is the first data row (1-based).
	DefaultStartRow = 4

	headerRow = 2
)

var ErrNoSource = errors.New("no profile source selected")

type Options struct {
	// Sheet is the workbook sheet. Ignored for csv and tsv files.
	Sheet string
	// StartRow is the 1-based row of the first segment.
	StartRow int
}

func DefaultOptions() Options {
	return Options{Sheet: DefaultSheet, StartRow: DefaultStartRow}
}

// Manager holds the selected profile source and loads profiles from it.
// It is safe to use from several goroutines.
type Manager struct {
	lock    sync.Mutex
	source  string
	options Options
}

func New(options Options) *Manager {
	if options.StartRow <= headerRow {
		options.StartRow = DefaultStartRow
	}
	return &Manager{options: options}
}

// SetSource selects the file loaded by the next call to Load.
func (m *Manager) SetSource(path string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.source = path
	zap.S().Infow("profile source selected", "path", path)
}

func (m *Manager) Source() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.source
}

// Load reads and parses the selected source.
func (m *Manager) Load() (entity.Profile, error) {
	source := m.Source()
	if source == "" {
		return entity.Profile{}, ErrNoSource
	}
	return m.LoadFile(source)
}

// LoadFile reads and parses the profile at path. The table format is chosen from the extension.
func (m *Manager) LoadFile(path string) (entity.Profile, error) {
	var table Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		table = NewXLSXTable(path, m.options.Sheet)
	case ".csv":
		table = NewDelimitedTable(path, 0)
	case ".tsv", ".txt":
		table = NewDelimitedTable(path, '\t')
	default:
		return entity.Profile{}, fmt.Errorf("unsupported profile format '%s'", filepath.Ext(path))
	}

	p, err := Parse(table, m.options.StartRow)
	if err != nil {
		return entity.Profile{}, err
	}
	p.Source = path

	zap.S().Infow("profile loaded", "path", path, "segments", p.Len(), "channels", p.Header, "run_time", p.RunTime)

	return p, nil
}

// Parse builds a profile from the rows of table. startRow is 1-based.
// Rows end at the first row without a duration cell.
func Parse(table Table, startRow int) (entity.Profile, error) {
	rows, err := table.Rows()
	if err != nil {
		return entity.Profile{}, err
	}

	if len(rows) < headerRow {
		return entity.Profile{}, fmt.Errorf("profile has no header row")
	}

	header := make([]string, 0, len(rows[headerRow-1]))
	for i, name := range rows[headerRow-1] {
		if i == 0 {
			continue
		}
		header = append(header, columnName(name, i))
	}

	p := entity.Profile{
		Header:   header,
		Segments: make([]entity.Segment, 0, len(rows)),
		RunTime:  runTime(rows[0]),
	}

	for idx := startRow - 1; idx < len(rows); idx++ {
		row := rows[idx]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			break
		}

		segment := entity.Segment{
			Row:         idx + 1,
			RawDuration: row[0],
			Targets:     make(map[string]entity.Target, len(row)-1),
		}

		for i, cell := range row[1:] {
			name := columnName("", i+1)
			if i < len(header) {
				name = header[i]
			}
			segment.Targets[name] = ParseTarget(cell)
		}

		p.Segments = append(p.Segments, segment)
	}

	return p, nil
}

func columnName(name string, col int) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return fmt.Sprintf("Column_%d", col)
}

// runTime reads the run time in minutes from the second cell of the first row.
func runTime(row []string) time.Duration {
	if len(row) < 2 {
		return 0
	}

	minutes, err := ParseFloat(row[1])
	if err != nil || minutes <= 0 {
		return 0
	}

	return time.Duration(minutes * float64(time.Minute))
}
