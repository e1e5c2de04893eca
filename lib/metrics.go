package lib

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	scannedTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "singular_scanned_tokens_total",
			Help: "Total number of corpus tokens scanned.",
		},
	)
	collapsedRareTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "singular_collapsed_rare_tokens_total",
			Help: "Total number of tokens folded into the rare token.",
		},
	)
	wordTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "singular_word_types",
			Help: "Number of word types after rare collapsing.",
		},
	)
	contextTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "singular_context_types",
			Help: "Number of distinct labeled contexts.",
		},
	)
	decompositionDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "singular_decomposition_duration_milliseconds",
			Help: "Duration of the correlation matrix decomposition.",
		},
	)
	achievedRank = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "singular_achieved_rank",
			Help: "Achieved rank of the most recent decomposition.",
		},
	)
)

func init() {
	prometheus.MustRegister(scannedTokens)
	prometheus.MustRegister(collapsedRareTokens)
	prometheus.MustRegister(wordTypes)
	prometheus.MustRegister(contextTypes)
	prometheus.MustRegister(decompositionDuration)
	prometheus.MustRegister(achievedRank)
}
