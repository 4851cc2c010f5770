package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	bucket     = "runs"
	bufferSize = 16
)

// Run is one profile run as kept in the journal.
type Run struct {
	ID       string    `json:"id"`
	Profile  string    `json:"profile"`
	Started  time.Time `json:"started"`
	Ended    time.Time `json:"ended,omitempty"`
	Segments int       `json:"segments"`
	// Reason tells why the run ended: "end_of_profile", "run_time", "stopped" or "" while running.
	Reason string `json:"reason,omitempty"`
	// LogFile is the log destination while the run was recorded.
	LogFile string `json:"log_file,omitempty"`
}

func (r Run) key() []byte {
	return []byte(fmt.Sprintf("%s/%s", r.Started.UTC().Format(time.RFC3339Nano), r.ID))
}

// Journal stores runs in a bolt database. Records are written by Run in the background
// so that recording a run never blocks the caller.
type Journal struct {
	db     *bolt.DB
	events chan Run
}

func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open run journal '%s': %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, events: make(chan Run, bufferSize)}, nil
}

// Record queues the run for writing. A run with the same id and start replaces the previous record.
// The record is dropped when the queue is full.
func (j *Journal) Record(r Run) {
	select {
	case j.events <- r:
	default:
		zap.S().Warnw("run journal queue full, record dropped", "run_id", r.ID)
	}
}

// Run writes queued records until ctx is done.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case r := <-j.events:
			if err := j.put(r); err != nil {
				zap.S().Errorw("cannot write run journal", "run_id", r.ID, "error", err)
			}
		case <-ctx.Done():
			// drain what is left
			for {
				select {
				case r := <-j.events:
					if err := j.put(r); err != nil {
						zap.S().Errorw("cannot write run journal", "run_id", r.ID, "error", err)
					}
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) put(r Run) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(r.key(), data)
	})
}

// List returns at most limit runs, newest first. A limit <= 0 returns every run.
func (j *Journal) List(limit int) ([]Run, error) {
	runs := []Run{}

	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupted run '%s': %w", k, err)
			}
			runs = append(runs, r)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})

	return runs, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
