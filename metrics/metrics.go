// Package metrics holds the prometheus collectors of the bot.
package metrics

import (
	"context"

	"github.com/nosgoth/eldergod/game/clan"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eldergod"

var (
	LevelupAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "levelup_attempts_total",
			Help:      "Level-up attempts by outcome (success, fail, denied, guaranteed)",
		},
		[]string{"outcome"},
	)
	AbilityUses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ability_uses_total",
			Help:      "Ability invocations by ability and outcome (used, denied)",
		},
		[]string{"ability", "outcome"},
	)
	SwapOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_outcomes_total",
			Help:      "Level swap proposals by outcome (accepted, declined, timeout)",
		},
		[]string{"outcome"},
	)
	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Chat interactions by name and outcome (ok, rejected, error)",
		},
		[]string{"name", "outcome"},
	)
	ClanMembers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clan_members",
			Help:      "Characters per clan at the last sample",
		},
		[]string{"clan"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limiter_requests_total",
			Help:      "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limiter_blocked_total",
			Help:      "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(LevelupAttempts)
	prometheus.MustRegister(AbilityUses)
	prometheus.MustRegister(SwapOutcomes)
	prometheus.MustRegister(Interactions)
	prometheus.MustRegister(ClanMembers)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(RLRequests)
	prometheus.MustRegister(RLBlocked)
}

// LevelCounter reports how many characters sit at each level.
type LevelCounter interface {
	LevelCounts(ctx context.Context) (map[int]int64, error)
}

// SampleClans refreshes ClanMembers from the current level distribution.
// Every clan of the table gets a value, empty clans included.
func SampleClans(ctx context.Context, src LevelCounter, table *clan.Table) error {
	counts, err := src.LevelCounts(ctx)
	if err != nil {
		return err
	}
	perClan := make(map[string]int64)
	for level, n := range counts {
		perClan[table.ByLevel(level).Key] += n
	}
	for _, c := range table.Clans() {
		ClanMembers.WithLabelValues(c.Key).Set(float64(perClan[c.Key]))
	}
	return nil
}
