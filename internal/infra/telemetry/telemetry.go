package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/social-platform-sessions/internal/infra/config"
)

// Provider holds the domain-level metrics of the service.
type Provider struct {
	terminations   *prometheus.CounterVec
	tokensRevoked  prometheus.Counter
	introspections *prometheus.CounterVec
}

// Attach registers service metrics and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		terminations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "terminations_total",
			Help:      "Total number of session terminations",
		}, []string{"kind"}),
		tokensRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "tokens_revoked_total",
			Help:      "Total number of tokens revoked by termination cascades",
		}),
		introspections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "introspections_total",
			Help:      "Total number of token introspections by outcome",
		}, []string{"active"}),
	}, nil
}

// ObserveTermination records one committed termination cascade.
func (p *Provider) ObserveTermination(kind string, sessions, tokens int) {
	if p == nil {
		return
	}
	p.terminations.WithLabelValues(kind).Add(float64(sessions))
	p.tokensRevoked.Add(float64(tokens))
}

// ObserveIntrospection records one introspection answer.
func (p *Provider) ObserveIntrospection(active bool) {
	if p == nil {
		return
	}
	outcome := "false"
	if active {
		outcome = "true"
	}
	p.introspections.WithLabelValues(outcome).Inc()
}
