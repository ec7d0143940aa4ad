package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/plugbus/internal/channel"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/ownership"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

const tracerName = "github.com/mattjoyce/plugbus/internal/dispatch"

// Audit event types published to the Recorder.
const (
	EventCompleted = "dispatch.completed"
	EventFailed    = "dispatch.failed"
)

// Response pairs an invoked handler with the value it returned.
type Response struct {
	Handler channel.Handler
	Value   any
}

// Result holds one Response per invoked handler in registration order.
type Result []Response

// HandlerIDs returns the ids of the invoked handlers in order.
func (r Result) HandlerIDs() []string {
	ids := make([]string, len(r))
	for i, resp := range r {
		ids[i] = resp.Handler.ID
	}
	return ids
}

// Values returns the handler responses in order.
func (r Result) Values() []any {
	vals := make([]any, len(r))
	for i, resp := range r {
		vals[i] = resp.Value
	}
	return vals
}

// Event is the audit record published for each non-trivial send.
type Event struct {
	DispatchID string        `json:"dispatch_id"`
	Channel    string        `json:"channel"`
	TenantID   string        `json:"tenant_id"`
	Invoked    []string      `json:"invoked"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration_ns"`
	Handler    string        `json:"handler,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Stats reports engine activity since construction.
type Stats struct {
	Sends    uint64
	FastPath uint64
	Invoked  uint64
	Skipped  uint64
	Failed   uint64
}

// Engine dispatches channel sends to eligible handlers.
type Engine struct {
	channels *channel.Registry
	resolver *ownership.Resolver
	provider TenantProvider
	recorder Recorder
	tracer   trace.Tracer
	logger   *slog.Logger

	sends    atomic.Uint64
	fastPath atomic.Uint64
	invoked  atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder publishes audit events for each non-trivial send.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a new Engine.
func New(channels *channel.Registry, resolver *ownership.Resolver, provider TenantProvider, opts ...Option) *Engine {
	e := &Engine{
		channels: channels,
		resolver: resolver,
		provider: provider,
		logger:   log.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Send invokes every handler of channelName that is eligible for sender and
// returns their responses in registration order.
//
// If a handler fails, Send returns that handler's error unchanged along with
// the responses collected before it.
func (e *Engine) Send(ctx context.Context, channelName string, sender *tenant.Tenant, payload any) (Result, error) {
	if sender == nil || sender.ID == "" {
		return nil, ErrInvalidSender
	}
	e.sends.Add(1)

	ch, ok := e.channels.Lookup(channelName)
	if !ok || ch.Len() == 0 {
		e.fastPath.Add(1)
		return Result{}, nil
	}
	handlers := ch.Handlers()

	dispatchID := uuid.NewString()
	logger := e.logger.With("dispatch_id", dispatchID, "channel", channelName, "tenant_id", sender.ID)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "dispatch.send",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("plugbus.dispatch_id", dispatchID),
			attribute.String("plugbus.channel", channelName),
			attribute.String("plugbus.tenant_id", sender.ID),
			attribute.Int("plugbus.handlers", len(handlers)),
		),
	)
	defer span.End()

	enabled, err := e.provider.EnabledComponents(ctx, sender.ID)
	if err != nil {
		err = fmt.Errorf("dispatch %s: enabled components for tenant %s: %w", channelName, sender.ID, err)
		e.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tenant provider failed")
		e.record(EventFailed, Event{
			DispatchID: dispatchID,
			Channel:    channelName,
			TenantID:   sender.ID,
			Duration:   time.Since(start),
			Error:      err.Error(),
		})
		return nil, err
	}
	tc := tenant.NewContext(sender, enabled)

	result := make(Result, 0, len(handlers))
	skipped := 0
	for _, h := range handlers {
		if reason := e.ineligible(h, tc); reason != "" {
			skipped++
			logger.Debug("handler skipped", "handler", h.ID, "origin", h.Origin, "reason", reason)
			continue
		}

		value, err := h.Callback(ctx, ch, tc, payload)
		if err != nil {
			e.invoked.Add(uint64(len(result)) + 1)
			e.skipped.Add(uint64(skipped))
			e.failed.Add(1)
			logger.Debug("handler failed", "handler", h.ID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
			e.record(EventFailed, Event{
				DispatchID: dispatchID,
				Channel:    channelName,
				TenantID:   sender.ID,
				Invoked:    append(result.HandlerIDs(), h.ID),
				Skipped:    skipped,
				Duration:   time.Since(start),
				Handler:    h.ID,
				Error:      err.Error(),
			})
			return result, err
		}
		result = append(result, Response{Handler: h, Value: value})
	}

	e.invoked.Add(uint64(len(result)))
	e.skipped.Add(uint64(skipped))
	span.SetAttributes(
		attribute.Int("plugbus.invoked", len(result)),
		attribute.Int("plugbus.skipped", skipped),
	)
	logger.Debug("dispatch completed", "invoked", len(result), "skipped", skipped)
	e.record(EventCompleted, Event{
		DispatchID: dispatchID,
		Channel:    channelName,
		TenantID:   sender.ID,
		Invoked:    result.HandlerIDs(),
		Skipped:    skipped,
		Duration:   time.Since(start),
	})
	return result, nil
}

// ineligible returns why h must not run for tc, or "" when it may.
func (e *Engine) ineligible(h channel.Handler, tc *tenant.Context) string {
	owner, ok := e.resolver.Owner(h.Origin)
	if !ok {
		return "unowned"
	}
	if !owner.Core && !tc.HasComponent(owner.ID) {
		return "disabled"
	}
	if !owner.Compatible {
		return "incompatible"
	}
	return ""
}

func (e *Engine) record(eventType string, ev Event) {
	if e.recorder == nil {
		return
	}
	e.recorder.Publish(eventType, ev)
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Sends:    e.sends.Load(),
		FastPath: e.fastPath.Load(),
		Invoked:  e.invoked.Load(),
		Skipped:  e.skipped.Load(),
		Failed:   e.failed.Load(),
	}
}
