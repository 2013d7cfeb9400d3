package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// declarationsTotal counts resolved declarations.
	//
	// Labels:
	//   - outcome: "resolved", "no_type", "no_method", "anonymous", "malformed"
	declarationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stepindex",
			Subsystem: "resolve",
			Name:      "declarations_total",
			Help:      "Step declarations processed by the resolver, by outcome.",
		},
		[]string{"outcome"},
	)

	// lookupErrorsTotal counts failed type lookups that were not plain misses.
	lookupErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stepindex",
			Subsystem: "resolve",
			Name:      "lookup_errors_total",
			Help:      "Type lookups that failed for reasons other than a missing type.",
		},
	)
)

const (
	outcomeResolved  = "resolved"
	outcomeNoType    = "no_type"
	outcomeNoMethod  = "no_method"
	outcomeAnonymous = "anonymous"
	outcomeMalformed = "malformed"
)
