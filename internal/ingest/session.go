package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/observerd/internal/config"
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"github.com/fyrsmithlabs/observerd/internal/stream"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited is returned when a session exceeds its event budget.
	ErrRateLimited = errors.New("event rate limit exceeded")

	// ErrSessionClosed is returned by HandleEvent after Close.
	ErrSessionClosed = errors.New("session closed")
)

// Service opens ingestion sessions against one store.
type Service struct {
	store     kvs.Store
	regs      []stream.Registration
	cfg       config.IngestConfig
	publisher Publisher
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *stream.Metrics
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher fans projections out through p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTracer sets the tracer handed to each pipeline.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *stream.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the receive-time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService validates regs and returns a service.
func NewService(store kvs.Store, regs []stream.Registration, cfg config.IngestConfig, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ingest: store is required")
	}
	if err := stream.ValidateRegistrations(regs); err != nil {
		return nil, err
	}

	s := &Service{
		store:     store,
		regs:      regs,
		cfg:       cfg,
		publisher: nopPublisher{},
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxBatch is the largest number of events accepted in one request.
func (s *Service) MaxBatch() int {
	return s.cfg.MaxBatch
}

// Open starts a session for the identity in md.
func (s *Service) Open(md event.Metadata) (*Session, error) {
	id := uuid.New().String()

	popts := []stream.Option{
		stream.WithLogger(s.logger.With(zap.String("session.id", id))),
	}
	if s.tracer != nil {
		popts = append(popts, stream.WithTracer(s.tracer))
	}
	if s.metrics != nil {
		popts = append(popts, stream.WithMetrics(s.metrics))
	}

	pipeline, err := stream.NewPipeline(md, s.store, s.regs, popts...)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	sess := &Session{
		id:       id,
		service:  s,
		pipeline: pipeline,
		metadata: event.WithUser(pipeline.UserID()),
	}
	if s.cfg.RateLimit > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.Burst)
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}

	ctx := logging.WithSessionID(logging.WithUserID(context.Background(), pipeline.UserID()), id)
	s.logger.Debug(ctx, "session opened")
	return sess, nil
}

// Dashboard merges the stored External projections of userID in
// registration order. Reducers with no stored state are skipped.
func (s *Service) Dashboard(ctx context.Context, userID string) (stream.Projection, error) {
	merged := make(stream.Projection)
	for _, reg := range s.regs {
		raw, err := s.store.Get(ctx, stream.BuildKey(reg.ID(), userID, stream.External))
		if errors.Is(err, kvs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", reg.ID(), err)
		}
		var projection stream.Projection
		if err := json.Unmarshal(raw, &projection); err != nil {
			return nil, fmt.Errorf("decode %s: %w", reg.ID(), err)
		}
		for k, v := range projection {
			merged[k] = v
		}
	}
	return merged, nil
}

// Session is one client connection's ingestion context.
type Session struct {
	id       string
	service  *Service
	pipeline *stream.Pipeline
	metadata event.Metadata
	limiter  *rate.Limiter

	// Reductions of one user's events must not interleave.
	mu     sync.Mutex
	closed bool
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the identity state is keyed under.
func (s *Session) UserID() string { return s.pipeline.UserID() }

// HandleEvent decodes raw and handles it.
func (s *Session) HandleEvent(ctx context.Context, raw []byte) (stream.Projection, error) {
	ev, err := event.Decode(raw)
	if err != nil {
		return nil, err
	}
	return s.Handle(ctx, ev)
}

// Handle stamps receive time, attaches session identity, reduces ev and
// publishes the merged projection. Publish failures are logged only; state
// has already been persisted.
func (s *Session) Handle(ctx context.Context, ev *event.Event) (stream.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}

	ctx = logging.WithSessionID(logging.WithUserID(ctx, s.UserID()), s.id)
	ctx = logging.WithDocumentID(ctx, ev.Client.DocID)

	now := s.service.now()
	ev.StampServerTime(float64(now.Unix()) + float64(now.Nanosecond())/1e9)
	ev.Metadata = s.metadata

	projection, err := s.pipeline.Process(ctx, ev)
	if err != nil {
		return nil, err
	}

	if err := s.service.publisher.Publish(ctx, s.UserID(), projection); err != nil {
		s.service.logger.Warn(ctx, "projection not published", zap.Error(err))
	}
	return projection, nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.service.metrics != nil {
		s.service.metrics.ActiveSessions.Dec()
	}
	return nil
}
