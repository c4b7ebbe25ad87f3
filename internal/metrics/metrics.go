package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuthorizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_authorize_total",
		Help: "Authorization attempts by outcome.",
	}, []string{"outcome"})

	RosterRecomputeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_roster_recompute_total",
		Help: "Recomputations of the merged roster view.",
	})

	RemovalStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_removal_steps_total",
		Help: "Individual deletion steps during user removal, by result.",
	}, []string{"result"})
)

// Serve exposes /metrics on its own listener, separate from the API port.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
