package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type scopeStats struct {
	last  time.Duration
	total time.Duration
	calls int
}

// Profiler times the per-tick stage submissions and keeps a few counters next to them.
// Scopes keep the order in which they were first opened.
type Profiler struct {
	mu     sync.Mutex
	now    func() time.Time
	scopes map[string]*scopeStats
	starts map[string]time.Time
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return NewProfilerWithClock(time.Now)
}

func NewProfilerWithClock(now func() time.Time) *Profiler {
	return &Profiler{
		now:    now,
		scopes: make(map[string]*scopeStats),
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts[name] = p.now()
	if _, ok := p.scopes[name]; !ok {
		p.scopes[name] = &scopeStats{}
		p.order = append(p.order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start, ok := p.starts[name]
	if !ok {
		return
	}
	delete(p.starts, name)
	p.record(name, p.now().Sub(start))
}

// Scope opens name and returns the matching close, for use with defer.
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) record(name string, d time.Duration) {
	s := p.scopes[name]
	s.last = d
	s.total += d
	s.calls++
}

func (p *Profiler) Last(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.scopes[name]; ok {
		return s.last
	}
	return 0
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

// Reset clears timings and counters but keeps the scope order.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.scopes {
		*s = scopeStats{}
	}
	clear(p.counts)
}

func (p *Profiler) GetStatsString() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("Submit timings (last / avg):\n")
	for _, name := range p.order {
		s := p.scopes[name]
		var avg time.Duration
		if s.calls > 0 {
			avg = s.total / time.Duration(s.calls)
		}
		fmt.Fprintf(&sb, "  %-18s: %7.3f ms / %7.3f ms (%d)\n", name, millis(s.last), millis(avg), s.calls)
	}

	sb.WriteString("\nCounters:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-18s: %d\n", k, p.counts[k])
	}
	return sb.String()
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
