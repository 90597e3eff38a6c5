package infra

import (
	"context"
	"errors"

	"admission-gateway/middleware/ratelimit/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrNilMeter = errors.New("nil meter")

// OTelStatsStore publica as decisões como contadores OpenTelemetry.
// Atributos ficam restritos a tier/admitted/degraded para manter a cardinalidade baixa.
type OTelStatsStore struct {
	decisions metric.Int64Counter
	degraded  metric.Int64Counter
}

func NewOTelStatsStore(meter metric.Meter) (*OTelStatsStore, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}

	decisions, err := meter.Int64Counter(
		"admission.ratelimit.decisions",
		metric.WithDescription("Rate limit decisions by tier and outcome"),
	)
	if err != nil {
		return nil, err
	}
	degraded, err := meter.Int64Counter(
		"admission.ratelimit.degraded",
		metric.WithDescription("Decisions served by the in-process fallback counter"),
	)
	if err != nil {
		return nil, err
	}
	return &OTelStatsStore{decisions: decisions, degraded: degraded}, nil
}

func (s *OTelStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil {
		return nil
	}
	tier := attribute.String("tier", ev.Tier)
	s.decisions.Add(ctx, 1, metric.WithAttributes(tier, attribute.Bool("admitted", ev.Admitted)))
	if ev.Degraded {
		s.degraded.Add(ctx, 1, metric.WithAttributes(tier))
	}
	return nil
}

// MultiStats repassa o evento para vários stores; devolve o primeiro erro.
type MultiStats []domain.StatsStore

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
