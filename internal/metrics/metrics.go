// Package metrics keeps in-process request counters for the predictor.
// Nothing is persisted; counters reset when the process restarts.
package metrics

import (
	"math"
	"sync"
)

// DefaultWindow is the number of response times kept for the running average.
const DefaultWindow = 100

// Collector counts successful prediction batches. Safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	requests   int
	categories map[string]int

	// ring buffer of the most recent response times
	times []float64
	next  int
	full  bool
}

// Snapshot is a point-in-time copy of the collector's state.
type Snapshot struct {
	RequestCount      int            `json:"request_count"`
	CategoryCounts    map[string]int `json:"category_counts"`
	AverageResponseMS float64        `json:"average_response_time_ms"`
	ResponseTimes     int            `json:"total_response_times"`
}

// New returns a Collector keeping the last window response times.
// A non-positive window falls back to DefaultWindow.
func New(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{
		categories: make(map[string]int),
		times:      make([]float64, window),
	}
}

// Record counts one successful batch whose first item was category and
// which took ms milliseconds. It returns the request number and the running
// average after recording.
func (c *Collector) Record(category string, ms float64) (int, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	c.categories[category]++

	c.times[c.next] = ms
	c.next++
	if c.next == len(c.times) {
		c.next = 0
		c.full = true
	}
	return c.requests, c.averageLocked()
}

// Snapshot copies the current counters. The average is rounded to 2 decimals.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	cats := make(map[string]int, len(c.categories))
	for k, v := range c.categories {
		cats[k] = v
	}
	return Snapshot{
		RequestCount:      c.requests,
		CategoryCounts:    cats,
		AverageResponseMS: Round2(c.averageLocked()),
		ResponseTimes:     c.sizeLocked(),
	}
}

// recent returns the recorded response times, oldest first.
func (c *Collector) recent() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		return append([]float64(nil), c.times[:c.next]...)
	}
	out := make([]float64, 0, len(c.times))
	out = append(out, c.times[c.next:]...)
	return append(out, c.times[:c.next]...)
}

func (c *Collector) sizeLocked() int {
	if c.full {
		return len(c.times)
	}
	return c.next
}

func (c *Collector) averageLocked() float64 {
	n := c.sizeLocked()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, t := range c.times[:n] {
		sum += t
	}
	return sum / float64(n)
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
