package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// searchReqs counts search requests by whether any product matched.
	searchReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_requests_total",
			Help: "Total number of catalog search requests.",
		},
		[]string{"outcome"}, // hit|empty
	)

	// searchResults records how many products each search returned.
	searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_search_results",
			Help:    "Number of products returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// lookups counts barcode lookups by result.
	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_lookups_total",
			Help: "Total number of barcode lookups.",
		},
		[]string{"result"}, // hit|miss
	)
)

func init() {
	prometheus.MustRegister(searchReqs, searchResults, lookups)
}
