package selection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listenup",
		Subsystem: "selection",
		Name:      "selections_total",
		Help:      "Unseen items handed out, by variant and whether a replenishment was needed.",
	}, []string{"variant", "path"})

	replenishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listenup",
		Subsystem: "selection",
		Name:      "replenished_items_total",
		Help:      "Items received from providers, by variant and outcome (inserted or rejected as duplicate).",
	}, []string{"variant", "outcome"})

	providerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "listenup",
		Subsystem: "selection",
		Name:      "provider_errors_total",
		Help:      "Failed provider fetches, by variant.",
	}, []string{"variant"})
)
