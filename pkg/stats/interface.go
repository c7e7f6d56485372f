package stats

import "github.com/KevoDB/kmerge/pkg/merge"

// Provider defines the interface for components that provide statistics
type Provider interface {
	// GetStats returns all statistics
	GetStats() map[string]interface{}

	// GetStatsFiltered returns statistics filtered by prefix
	GetStatsFiltered(prefix string) map[string]interface{}
}

// Collector records merge activity in process and exposes it as a Provider
type Collector interface {
	Provider
	merge.MergeMetrics
}

// Ensure AtomicCollector implements the Collector interface
var _ Collector = (*AtomicCollector)(nil)
