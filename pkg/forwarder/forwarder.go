package forwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aistate/pkg/log"
	"aistate/pkg/metrics"
	"aistate/pkg/models"
	"aistate/pkg/probe"
	"aistate/pkg/registry"
)

// DefaultCompensationTimeout bounds the rollback write to down.
const DefaultCompensationTimeout = 30 * time.Second

// StateStore reads and writes the canonical availability flag.
type StateStore interface {
	QueryState(ctx context.Context) (models.AvailabilityState, error)
	SetState(ctx context.Context, state models.AvailabilityState) ([]byte, error)
}

// DocumentReader is implemented by stores that can hand back their state object as sent.
type DocumentReader interface {
	QueryStateDocument(ctx context.Context) (json.RawMessage, models.AvailabilityState, error)
}

// TargetResolver picks the model endpoint to probe.
type TargetResolver interface {
	ResolveTarget() (registry.Target, error)
}

// LivenessProber checks that a model endpoint answers in time.
type LivenessProber interface {
	Probe(ctx context.Context, url string) probe.Outcome
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithMetrics records forward, probe and compensation metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(f *Forwarder) {
		f.metrics = collector
	}
}

// WithCompensationTimeout overrides DefaultCompensationTimeout.
func WithCompensationTimeout(timeout time.Duration) Option {
	return func(f *Forwarder) {
		if timeout > 0 {
			f.compensationTimeout = timeout
		}
	}
}

// Forwarder mirrors a requested availability state to the upstream store and confirms
// it with a liveness probe, rolling the store back to down when the probe fails.
//
// Concurrent SetState calls are not serialised; the store sees last write wins.
type Forwarder struct {
	store               StateStore
	targets             TargetResolver
	prober              LivenessProber
	metrics             *metrics.Collector
	compensationTimeout time.Duration
}

// New creates a Forwarder over its three collaborators.
func New(store StateStore, targets TargetResolver, prober LivenessProber, opts ...Option) *Forwarder {
	f := &Forwarder{
		store:               store,
		targets:             targets,
		prober:              prober,
		compensationTimeout: DefaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// QueryState returns the upstream state verbatim. Failures are returned uninterpreted.
func (f *Forwarder) QueryState(ctx context.Context) (models.AvailabilityState, error) {
	state, err := f.store.QueryState(ctx)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordUpstreamReadFailure()
		}
		return "", err
	}
	return state, nil
}

// QueryStateDocument returns the upstream state object as the store sent it. Stores
// without a DocumentReader get a {"state": ...} object built from QueryState.
func (f *Forwarder) QueryStateDocument(ctx context.Context) (json.RawMessage, error) {
	reader, ok := f.store.(DocumentReader)
	if !ok {
		state, err := f.QueryState(ctx)
		if err != nil {
			return nil, err
		}
		document, err := json.Marshal(models.StatePayload{State: state})
		if err != nil {
			return nil, err
		}
		return document, nil
	}

	document, _, err := reader.QueryStateDocument(ctx)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordUpstreamReadFailure()
		}
		return nil, err
	}
	return document, nil
}

// SetState forwards requested upstream, probes the first model and reports the result.
// It never returns an error: every failure becomes {ok:false} and, once the store may
// have been touched, a best-effort write of down.
func (f *Forwarder) SetState(ctx context.Context, requested models.AvailabilityState) models.ForwardResult {
	start := time.Now()
	result := f.setState(ctx, requested)

	if f.metrics != nil {
		f.metrics.RecordSetResult(result.OK)
	}
	log.Info().
		Str("requested", requested.String()).
		Bool("ok", result.OK).
		Dur("duration", time.Since(start)).
		Msg("State change finished")

	return result
}

func (f *Forwarder) setState(ctx context.Context, requested models.AvailabilityState) models.ForwardResult {
	if f.metrics != nil {
		f.metrics.RecordSetRequest(requested.String())
	}

	if !requested.Valid() {
		log.Warn().Str("requested", requested.String()).Msg("Rejecting unknown availability state")
		return models.ForwardResult{OK: false}
	}

	if _, err := f.store.SetState(ctx, requested); err != nil {
		log.Warn().Err(err).Str("requested", requested.String()).Msg("Forwarding state upstream failed")
		f.compensate(ctx, err)
		return models.ForwardResult{OK: false}
	}

	target, err := f.targets.ResolveTarget()
	if err != nil {
		log.Error().Err(err).Msg("No liveness target available")
		f.compensate(ctx, err)
		return models.ForwardResult{OK: false}
	}

	outcome := f.prober.Probe(ctx, target.URL)
	if f.metrics != nil {
		f.metrics.RecordProbe(outcome.Kind.String(), outcome.Latency.Seconds())
	}

	if outcome.OK() {
		log.Info().
			Str("model", target.Model).
			Str("target_kind", target.Kind.String()).
			Str("url", target.URL).
			Int("status", outcome.StatusCode).
			Dur("latency", outcome.Latency).
			Msg("Liveness probe succeeded")
		return models.ForwardResult{OK: true}
	}

	log.Warn().
		Err(outcome.Err).
		Str("outcome", outcome.Kind.String()).
		Str("model", target.Model).
		Str("url", target.URL).
		Dur("latency", outcome.Latency).
		Msg("Liveness probe failed")
	f.compensate(ctx, fmt.Errorf("probe %s: %w", outcome.Kind, outcome.Err))
	return models.ForwardResult{OK: false}
}

// compensate writes down once. It runs detached from ctx so a departed caller still
// leaves the store in down, and its failure is only logged.
func (f *Forwarder) compensate(ctx context.Context, cause error) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.compensationTimeout)
	defer cancel()

	_, err := f.store.SetState(compCtx, models.StateDown)
	if f.metrics != nil {
		f.metrics.RecordCompensation(err == nil)
	}
	if err != nil {
		log.Error().
			Err(err).
			AnErr("cause", cause).
			Msg("Compensating down write failed")
		return
	}

	log.Info().AnErr("cause", cause).Msg("State compensated to down")
}
