package stream

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/kvs"
	"github.com/fyrsmithlabs/observerd/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName scopes pipeline spans.
const InstrumentationName = "github.com/fyrsmithlabs/observerd/internal/stream"

// Pipeline fans one user's events out to an ordered list of processors.
// A Pipeline belongs to one session and is not safe for concurrent use.
type Pipeline struct {
	userID     string
	processors []Processor
	logger     *logging.Logger
	tracer     trace.Tracer
	metrics    *Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracer sets the tracer for stream.process and stream.reduce spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithMetrics records Prometheus metrics. Nil disables them.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// ValidateRegistrations checks ids and namespaces without building anything.
func ValidateRegistrations(regs []Registration) error {
	ids := make(map[string]bool, len(regs))
	owners := make(map[string]string)
	for _, r := range regs {
		if err := ValidateIdentity(r.ID()); err != nil {
			return err
		}
		if ids[r.ID()] {
			return fmt.Errorf("%w: %q", ErrDuplicateReducer, r.ID())
		}
		ids[r.ID()] = true

		for _, key := range r.Namespace() {
			if owner, ok := owners[key]; ok && owner != r.ID() {
				return fmt.Errorf("%w: %q declared by %q and %q", ErrNamespaceConflict, key, owner, r.ID())
			}
			owners[key] = r.ID()
		}
	}
	return nil
}

// NewPipeline binds every registration, in order, to the user in md.
// Metadata without an identity falls back to GuestUserID.
func NewPipeline(md event.Metadata, store kvs.Store, regs []Registration, opts ...Option) (*Pipeline, error) {
	if err := ValidateRegistrations(regs); err != nil {
		return nil, err
	}

	p := &Pipeline{
		logger: logging.NewNop(),
		tracer: otel.Tracer(InstrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.userID = md.UserID()
	if p.userID == "" {
		p.userID = GuestUserID
		p.logger.Warn(context.Background(), "no resolved identity, using guest id")
	}

	if p.metrics != nil {
		store = &timedStore{Store: store, hist: p.metrics.StoreOpDuration}
	}

	p.processors = make([]Processor, 0, len(regs))
	for _, r := range regs {
		p.processors = append(p.processors, r.bind(p.userID, store))
	}
	return p, nil
}

// UserID returns the identity state is keyed under.
func (p *Pipeline) UserID() string {
	return p.userID
}

// Process runs ev through every processor and merges the projections.
// The first failure aborts the event; processors before it have already
// persisted their state.
func (p *Pipeline) Process(ctx context.Context, ev *event.Event) (Projection, error) {
	ctx, span := p.tracer.Start(ctx, "stream.process",
		trace.WithAttributes(attribute.Int("stream.reducers", len(p.processors))))
	defer span.End()

	merged := make(Projection)
	for _, proc := range p.processors {
		projection, err := p.reduce(ctx, proc, ev)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reduce failed")
			return nil, err
		}
		for k, v := range projection {
			merged[k] = v
		}
	}
	return merged, nil
}

func (p *Pipeline) reduce(ctx context.Context, proc Processor, ev *event.Event) (Projection, error) {
	id := proc.ReducerID()
	ctx, span := p.tracer.Start(ctx, "stream.reduce",
		trace.WithAttributes(attribute.String("stream.reducer", id)))
	defer span.End()

	projection, err := proc.Process(ctx, ev)
	if err == nil {
		err = checkNamespace(id, proc.Namespace(), projection)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.metrics != nil {
			p.metrics.ReducerErrors.WithLabelValues(id).Inc()
		}
		p.logger.Error(ctx, "reducer failed", zap.String("reducer", id), zap.Error(err))
		return nil, fmt.Errorf("reducer %s: %w", id, err)
	}

	if p.metrics != nil {
		p.metrics.EventsProcessed.WithLabelValues(id).Inc()
	}
	p.logger.Trace(ctx, "event reduced", zap.String("reducer", id), zap.Int("keys", len(projection)))
	return projection, nil
}

func checkNamespace(id string, namespace []string, projection Projection) error {
	for k := range projection {
		declared := false
		for _, n := range namespace {
			if n == k {
				declared = true
				break
			}
		}
		if !declared {
			return fmt.Errorf("%w: %q not declared by %q", ErrUndeclaredKey, k, id)
		}
	}
	return nil
}
