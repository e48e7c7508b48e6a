package stats

import (
	"sort"
	"sync"
)

// Kind classifies how a statistic's samples are interpreted.
type Kind string

const (
	// KindCount samples an absolute gauge value.
	KindCount Kind = "count"

	// KindRate samples a monotonically growing counter; consumers derive
	// the rate from successive samples.
	KindRate Kind = "rate"
)

// Statistic is one published measurement. Partial marks statistics whose
// sample covers only this node; cluster-wide totals for those are the sum
// over all nodes, while non-partial statistics read the same everywhere.
type Statistic struct {
	Key         string
	Name        string
	Kind        Kind
	Description string
	Unit        string
	Partial     bool
	Sample      func() float64
}

// Collector is the statistic registrar the rest of the process publishes
// through.
type Collector interface {
	Register(s Statistic)
	Unregister(key string)
}

// MemoryCollector keeps registered statistics in memory and snapshots
// them on demand.
type MemoryCollector struct {
	mu    sync.RWMutex
	stats map[string]Statistic
}

// NewMemoryCollector creates an empty collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{stats: make(map[string]Statistic)}
}

// Register adds or replaces the statistic under its key.
func (c *MemoryCollector) Register(s Statistic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[s.Key] = s
}

// Unregister removes the statistic under key.
func (c *MemoryCollector) Unregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stats, key)
}

// Sampled is one statistic with its current value.
type Sampled struct {
	Statistic
	Value float64
}

// Snapshot samples every registered statistic, ordered by key.
func (c *MemoryCollector) Snapshot() []Sampled {
	c.mu.RLock()
	stats := make([]Statistic, 0, len(c.stats))
	for _, s := range c.stats {
		stats = append(stats, s)
	}
	c.mu.RUnlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })

	out := make([]Sampled, 0, len(stats))
	for _, s := range stats {
		out = append(out, Sampled{Statistic: s, Value: s.Sample()})
	}
	return out
}
