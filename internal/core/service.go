// Package core orchestrates the entity store, the campus hierarchy, the
// work-item lifecycle and the bulk importer behind one transactional service.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campuscore/internal/drafting"
	"campuscore/internal/hierarchy"
	"campuscore/internal/lifecycle"
	"campuscore/pkg/domain"
)

// Service exposes the campuscore operations over a PersistentStore.
type Service struct {
	store     domain.PersistentStore
	generator drafting.Generator
	logger    *slog.Logger
	metrics   MetricsRecorder
	tracer    Tracer
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithGenerator installs the draft-ticket generator. Without one every
// maintenance ticket uses the fallback draft.
func WithGenerator(g drafting.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the id source used for new records.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService constructs a service backed by store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "core")
	return s
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// HasGenerator reports whether a draft generator is installed.
func (s *Service) HasGenerator() bool { return s.generator != nil }

// run wraps one service operation with tracing, metrics and failure logging.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	if err != nil {
		level := slog.LevelWarn
		if domain.IsPersistence(err) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "operation failed", "op", op, "error", err)
	}
	return err
}

// transact runs fn in one store transaction.
func (s *Service) transact(ctx context.Context, fn func(domain.Transaction) error) error {
	_, err := s.store.RunInTransaction(ctx, fn)
	return err
}

type snapshot struct {
	campuses    []domain.Campus
	bathrooms   []domain.Bathroom
	inspections []domain.Inspection
	tickets     []domain.Ticket
}

func (s *Service) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		snap.campuses = v.ListCampuses()
		snap.bathrooms = v.ListBathrooms()
		snap.inspections = v.ListInspections()
		snap.tickets = v.ListTickets()
		return nil
	})
	return snap, err
}

func (s *Service) forest(ctx context.Context) (*hierarchy.Forest, error) {
	var campuses []domain.Campus
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		campuses = v.ListCampuses()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hierarchy.NewForest(campuses), nil
}

func (snap snapshot) resolvedTickets() []domain.Ticket {
	return lifecycle.ResolveLabels(snap.tickets, snap.campuses, snap.bathrooms)
}
