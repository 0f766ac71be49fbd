// Package configstore persists the feeding schedule as a fixed-layout,
// versioned record on a byte medium.
package configstore

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
)

type Store struct {
	mu     sync.Mutex
	medium Medium
	log    *logger.Logger
	onInit func(reason error)
	onRead func(err error)
}

type Option func(*Store)

// WithReinitHook is called every time Load falls back to defaults.
func WithReinitHook(fn func(reason error)) Option {
	return func(s *Store) { s.onInit = fn }
}

// WithReadErrorHook is called when the medium cannot be read at all.
func WithReadErrorHook(fn func(err error)) Option {
	return func(s *Store) { s.onRead = fn }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

func New(m Medium, opts ...Option) *Store {
	s := &Store{medium: m, log: logger.New("configstore")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load returns the persisted schedule. It never fails. A blank, foreign,
// short or undecodable record is replaced by the defaults in a single commit
// and the defaults are returned. When the medium cannot be read the defaults
// are returned for this run only and the stored record is left untouched.
func (s *Store) Load() model.FeedingSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.medium.ReadRecord()
	if err != nil {
		s.log.Error("reading record failed, using defaults without saving: %v", err)
		if s.onRead != nil {
			s.onRead(err)
		}
		return model.DefaultSchedule()
	}
	sched, err := Decode(raw)
	if err == nil {
		return sched
	}

	s.log.Warn("record unusable, seeding defaults: %v", err)
	def := model.DefaultSchedule()
	if cerr := s.commit(def); cerr != nil {
		// The defaults still apply for this run; the next boot retries.
		s.log.Error("seeding defaults failed: %v", cerr)
	}
	if s.onInit != nil {
		s.onInit(err)
	}
	return def
}

// Save writes every field plus the schema marker in one commit.
func (s *Store) Save(sched model.FeedingSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(sched)
}

// Reset overwrites the record with the defaults.
func (s *Store) Reset() error {
	return s.Save(model.DefaultSchedule())
}

func (s *Store) commit(sched model.FeedingSchedule) error {
	rec, err := Encode(sched)
	if err != nil {
		return err
	}
	if err := s.medium.Commit(rec); err != nil {
		return fmt.Errorf("configstore: commit: %w", err)
	}
	return nil
}

// Inspection is a raw view of the record for diagnostics.
type Inspection struct {
	Raw      []byte
	Marker   byte
	Schedule *model.FeedingSchedule
	Err      error
}

func (i Inspection) Hex() string { return hex.EncodeToString(i.Raw) }

// Inspect reads the record without repairing it.
func (s *Store) Inspect() (Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.medium.ReadRecord()
	if err != nil {
		return Inspection{}, fmt.Errorf("configstore: inspect: %w", err)
	}
	in := Inspection{Raw: raw}
	if len(raw) > 0 {
		in.Marker = raw[0]
	}
	sched, derr := Decode(raw)
	if derr != nil {
		in.Err = derr
	} else {
		in.Schedule = &sched
	}
	return in, nil
}

func (s *Store) Close() error { return s.medium.Close() }
