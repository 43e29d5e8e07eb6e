// Package audit persists enrichment lookup records off the request path.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/food-enrich/models"
	"github.com/upb/food-enrich/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned when recording before Start or after Stop
	ErrNotStarted = errors.New("lookup recorder not running")
	// ErrBufferFull is returned when the record was dropped
	ErrBufferFull = errors.New("lookup record buffer full")
)

// Recorder accepts lookup records for asynchronous persistence
type Recorder interface {
	Record(lookup *models.EnrichmentLookup) error
}

// Service handles asynchronous lookup persistence with a fixed worker pool
type Service struct {
	repo         repositories.LookupRepository
	logger       *zap.Logger
	records      chan *models.EnrichmentLookup
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Config holds configuration for the Service
type Config struct {
	BufferSize   int           // Size of the record buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert timeout
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewService creates a new Service instance
func NewService(repo repositories.LookupRepository, logger *zap.Logger, config Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.BufferSize < 0 {
		config.BufferSize = 0
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:         repo,
		logger:       logger,
		records:      make(chan *models.EnrichmentLookup, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("lookup recorder already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started lookup recorder",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the buffer and waits for queued records to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	close(s.records)
	s.mu.Unlock()

	s.logger.Info("stopping lookup recorder", zap.Int("pending_records", len(s.records)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("lookup recorder stopped gracefully")
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("lookup recorder stop timeout after %v", timeout)
	}
}

// Record queues a lookup without blocking. A full buffer drops the record.
func (s *Service) Record(lookup *models.EnrichmentLookup) error {
	if lookup == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return ErrNotStarted
	}

	select {
	case s.records <- lookup:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("lookup record buffer full, dropping record",
			zap.String("lookup_id", lookup.ID.String()),
			zap.String("decision", lookup.Decision))
		return ErrBufferFull
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("lookup recorder worker started", zap.Int("worker_id", id))

	for lookup := range s.records {
		if err := s.write(lookup); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to persist lookup",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("lookup_id", lookup.ID.String()))
			continue
		}
		s.written.Add(1)
	}

	s.logger.Debug("lookup recorder worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(lookup *models.EnrichmentLookup) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, lookup); err != nil {
		return fmt.Errorf("failed to insert lookup: %w", err)
	}
	return nil
}

// GetStats returns statistics about the recorder
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.records),
		WorkerCount:    s.workerCount,
		Started:        s.started && !s.stopped,
		Written:        s.written.Load(),
		Failed:         s.failed.Load(),
		Dropped:        s.dropped.Load(),
	}
}

// Stats represents recorder statistics
type Stats struct {
	BufferSize     int   `json:"buffer_size"`
	PendingRecords int   `json:"pending_records"`
	WorkerCount    int   `json:"worker_count"`
	Started        bool  `json:"started"`
	Written        int64 `json:"written"`
	Failed         int64 `json:"failed"`
	Dropped        int64 `json:"dropped"`
}
