package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	// TimeLayout is the layout of the leading timestamp of each record.
	TimeLayout = "2006-01-02 15:04:05.000000"

	headerComment = "### Device Names"
	timeColumn    = "Zeitpunkt"
)

var (
	ErrNoDestination = errors.New("no log destination selected")
	// ErrRetryPending is returned while a failed destination waits for its next attempt.
	ErrRetryPending = errors.New("waiting before next attempt")
)

// PersistenceError reports a record which could not be appended. It is never fatal.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cannot append to '%s': %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type RetryConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
	}
}

// Recorder appends tab-separated records to the log destination.
// A header block is written before the first record of a run and after the destination changes.
type Recorder struct {
	lock          sync.Mutex
	path          string
	headerWritten bool
	backoff       *backoff.ExponentialBackOff
	// retryAt is the earliest time of the next attempt after a failure.
	retryAt time.Time
}

func New(path string, retry RetryConfig) *Recorder {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retry.InitialInterval
	b.Multiplier = retry.Multiplier
	b.MaxInterval = retry.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return &Recorder{path: path, backoff: b}
}

func (r *Recorder) SetDestination(path string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if path == r.path {
		return
	}

	r.path = path
	r.headerWritten = false
	r.resetRetry()

	zap.S().Infow("log destination selected", "path", path)
}

func (r *Recorder) Destination() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.path
}

// NewRun makes the next record start with a header block.
func (r *Recorder) NewRun() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.headerWritten = false
}

// Write appends one record stamped with now. columns is written in the header block when needed
// and must match values.
func (r *Recorder) Write(now time.Time, columns, values []string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.path == "" {
		return &PersistenceError{Err: ErrNoDestination}
	}

	if !r.retryAt.IsZero() && now.Before(r.retryAt) {
		return &PersistenceError{Path: r.path, Err: ErrRetryPending}
	}

	var buf bytes.Buffer
	if !r.headerWritten {
		buf.WriteString(headerComment)
		buf.WriteByte('\n')
		buf.WriteString(timeColumn)
		for _, c := range columns {
			buf.WriteByte('\t')
			buf.WriteString(c)
		}
		buf.WriteByte('\n')
	}

	buf.WriteString(now.Format(TimeLayout))
	for _, v := range values {
		buf.WriteByte('\t')
		buf.WriteString(sanitize(v))
	}
	buf.WriteByte('\n')

	if err := appendFile(r.path, buf.Bytes()); err != nil {
		next := r.backoff.NextBackOff()
		r.retryAt = now.Add(next)
		zap.S().Debugw("log write failed", "path", r.path, "retry_in", next, "error", err)
		return &PersistenceError{Path: r.path, Err: err}
	}

	r.headerWritten = true
	r.resetRetry()

	return nil
}

func (r *Recorder) resetRetry() {
	r.retryAt = time.Time{}
	r.backoff.Reset()
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// sanitize keeps a value on its own column and line.
func sanitize(v string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(v)
}
