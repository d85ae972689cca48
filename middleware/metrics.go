package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rategate_checks_total",
	Help: "Rate limit checks by outcome.",
}, []string{"outcome"})

const (
	outcomeAllowed = "allowed"
	outcomeDenied  = "denied"
	outcomeError   = "error"
)
