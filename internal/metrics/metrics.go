package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/safar/osushi-store/internal/cart"
)

// Store records checkout outcomes and cart activity. A nil *Store is a no-op.
type Store struct {
	checkoutDuration *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	pointsEarned     prometheus.Counter
	pointsRedeemed   prometheus.Counter
	cartMutations    *prometheus.CounterVec
}

// New registers the store metrics on reg. A nil registerer yields a no-op Store.
func New(reg prometheus.Registerer) *Store {
	if reg == nil {
		return &Store{}
	}
	s := &Store{
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of order finalization in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"order_type"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Order finalizations by outcome.",
		}, []string{"order_type", "outcome"}),
		pointsEarned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_earned_total",
			Help: "Loyalty points credited at checkout.",
		}),
		pointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loyalty_points_redeemed_total",
			Help: "Loyalty points debited at checkout.",
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Persisted cart mutations by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(s.checkoutDuration, s.checkouts, s.pointsEarned, s.pointsRedeemed, s.cartMutations)
	return s
}

// ObserveCheckout records one finalization attempt. outcome is "success" or an
// error code.
func (s *Store) ObserveCheckout(orderType, outcome string, duration time.Duration) {
	if s == nil || s.checkouts == nil {
		return
	}
	orderType = normalizeLabel(orderType)
	s.checkouts.WithLabelValues(orderType, normalizeLabel(outcome)).Inc()
	s.checkoutDuration.WithLabelValues(orderType).Observe(duration.Seconds())
}

func (s *Store) AddLoyaltyPoints(earned, redeemed int) {
	if s == nil || s.pointsEarned == nil {
		return
	}
	if earned > 0 {
		s.pointsEarned.Add(float64(earned))
	}
	if redeemed > 0 {
		s.pointsRedeemed.Add(float64(redeemed))
	}
}

// CartObserver counts persisted cart mutations; register it on a cart.Store.
func (s *Store) CartObserver() cart.Observer {
	return func(_ context.Context, ev cart.Event) {
		if s == nil || s.cartMutations == nil {
			return
		}
		s.cartMutations.WithLabelValues(normalizeLabel(string(ev.Op))).Inc()
	}
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
