package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odisys/ces-gate/internal/domain/audit"
)

// DropCounter receives one increment per audit record lost to backpressure.
// A Prometheus counter satisfies it.
type DropCounter interface {
	Inc()
}

// AuditService provides async audit logging with a buffered channel and a
// background worker, so writing the trail never blocks the pipeline hot path.
type AuditService struct {
	store     audit.Store
	records   chan audit.Record
	done      chan struct{}
	wg        sync.WaitGroup
	logger    *slog.Logger
	drops     DropCounter
	dropCount atomic.Int64
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithChannelSize sets the size of the audit channel buffer.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.records = make(chan audit.Record, size)
	}
}

// WithDropCounter mirrors the drop count to an external counter.
func WithDropCounter(c DropCounter) AuditOption {
	return func(s *AuditService) {
		s.drops = c
	}
}

// NewAuditService creates an AuditService and starts its worker.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store:   store,
		records: make(chan audit.Record, 1000),
		done:    make(chan struct{}),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.worker()
	return s
}

// Record enqueues an audit record. When the channel is full the record is
// dropped and counted rather than blocking the pipeline.
func (s *AuditService) Record(record audit.Record) {
	select {
	case s.records <- record:
	default:
		dropped := s.dropCount.Add(1)
		if s.drops != nil {
			s.drops.Inc()
		}
		if dropped%100 == 1 {
			s.logger.Warn("audit channel full, dropping records", "dropped_total", dropped)
		}
	}
}

// DroppedRecords returns the number of records dropped due to backpressure.
func (s *AuditService) DroppedRecords() int64 {
	return s.dropCount.Load()
}

// Close drains pending records and stops the worker.
func (s *AuditService) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.store.Close()
}

func (s *AuditService) worker() {
	defer s.wg.Done()
	for {
		select {
		case record := <-s.records:
			s.write(record)
		case <-s.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case record := <-s.records:
					s.write(record)
				default:
					return
				}
			}
		}
	}
}

func (s *AuditService) write(record audit.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Write(ctx, record); err != nil {
		s.logger.Error("failed to write audit record", "request_id", record.RequestID, "error", err)
	}
}
