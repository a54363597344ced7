package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
)

// Storefront counts cart activity and checkout progress. It satisfies
// cart.Observer and checkout.Observer.
type Storefront struct {
	CartMutations *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	PaymentMS     *prometheus.HistogramVec
	Orders        prometheus.Counter
}

func NewStorefront(reg prometheus.Registerer) *Storefront {
	m := &Storefront{
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Applied cart mutations by operation.",
		}, []string{"op"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transitions_total",
			Help:      "Checkout step transitions by outcome.",
		}, []string{"from", "to", "outcome"}),
		PaymentMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_authorization_duration_ms",
			Help:      "Payment authorization latency in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"}),
		Orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Orders that reached confirmation.",
		}),
	}
	reg.MustRegister(m.CartMutations, m.Transitions, m.PaymentMS, m.Orders)
	return m
}

func (m *Storefront) OnCartMutation(op string) {
	m.CartMutations.WithLabelValues(op).Inc()
}

func (m *Storefront) OnCheckoutTransition(from, to checkout.Step, outcome string) {
	m.Transitions.WithLabelValues(string(from), string(to), outcome).Inc()
	if to == checkout.StepConfirmation && from != to && outcome == checkout.OutcomeOK {
		m.Orders.Inc()
	}
}

func (m *Storefront) OnPaymentAuthorization(elapsed time.Duration, err error) {
	result := "authorized"
	if err != nil {
		result = "failed"
	}
	m.PaymentMS.WithLabelValues(result).Observe(float64(elapsed.Milliseconds()))
}
