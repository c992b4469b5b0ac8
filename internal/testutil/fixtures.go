// Package testutil holds shared test fixtures: a pre-populated effect
// registry, a thread-safe external log, and an in-memory journal sink.
package testutil

import (
	"sync"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/runtime"
)

// Fixture effect names. Tests intern these against a Registry() clone.
const (
	EffLog      = "log"       // ordered, lowerable, allowed in while and scan
	EffLog2     = "log2"      // ordered, lowerable, allowed in while
	EffNote     = "note"      // unordered, lowerable, allowed everywhere
	EffCount    = "count"     // unordered, lowerable
	EffOpaque   = "opaque"    // unordered, no backend lowering
	EffOrderedR = "ordered-r" // ordered, lowerable, allowed in cond and replicate
)

// Registry builds the standard fixture registry. Callers that mutate
// classification should Clone first.
func Registry() *effects.Registry {
	reg := effects.NewRegistry()

	log := reg.Intern(EffLog)
	reg.DeclareLowerable(log)
	reg.DeclareOrdered(log)
	reg.AllowInConstruct(effects.ConstructWhile, log)
	reg.AllowInConstruct(effects.ConstructScan, log)

	log2 := reg.Intern(EffLog2)
	reg.DeclareLowerable(log2)
	reg.DeclareOrdered(log2)
	reg.AllowInConstruct(effects.ConstructWhile, log2)

	note := reg.Intern(EffNote)
	reg.DeclareLowerable(note)
	for kind := range effects.ValidConstructKinds {
		reg.AllowInConstruct(kind, note)
	}

	count := reg.Intern(EffCount)
	reg.DeclareLowerable(count)

	reg.Intern(EffOpaque)

	ordr := reg.Intern(EffOrderedR)
	reg.DeclareLowerable(ordr)
	reg.DeclareOrdered(ordr)
	reg.AllowInConstruct(effects.ConstructCond, ordr)
	reg.AllowInConstruct(effects.ConstructReplicate, ordr)

	return reg
}

// LogCollector is a thread-safe external log. Its callback appends
// every scalar element of every argument, in invocation order, so
// ordered-effect tests can assert on exact sequences.
type LogCollector struct {
	mu     sync.Mutex
	values []float64
}

// NewLogCollector creates an empty collector.
func NewLogCollector() *LogCollector {
	return &LogCollector{}
}

// Append records values directly.
func (c *LogCollector) Append(vs ...float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, vs...)
}

// Values returns a snapshot of the log.
func (c *LogCollector) Values() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.values))
	copy(out, c.values)
	return out
}

// Callback adapts the collector to a host callback with no results.
func (c *LogCollector) Callback() runtime.HostCallback {
	return func(args []runtime.Value) ([]runtime.Value, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, a := range args {
			c.values = append(c.values, a.Data...)
		}
		return nil, nil
	}
}

// MemorySink is an in-memory runtime.Sink.
type MemorySink struct {
	mu   sync.Mutex
	recs []runtime.Record
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements runtime.Sink.
func (s *MemorySink) Record(rec runtime.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// Records returns a snapshot of recorded firings.
func (s *MemorySink) Records() []runtime.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]runtime.Record, len(s.recs))
	copy(out, s.recs)
	return out
}
