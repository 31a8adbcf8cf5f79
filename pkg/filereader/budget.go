package filereader

import (
	"sync"
	"sync/atomic"
)

// ProgressFunc receives the overall progress as a fraction in [0, 1] and a
// short description of the current step.
type ProgressFunc func(fraction float64, message string)

// Budget lets a caller watch an analysis and cut it short from another goroutine.
//
// RequestQuickScan asks the analyzer to finish early with what it has seen so
// far; the result is flagged as partial. Interrupt stops the analysis without
// a result.
type Budget struct {
	quick       atomic.Bool
	interrupted atomic.Bool

	mu         sync.Mutex
	fraction   float64
	message    string
	onProgress ProgressFunc
}

// NewBudget returns a budget reporting progress to onProgress, which may be nil.
func NewBudget(onProgress ProgressFunc) *Budget {
	return &Budget{onProgress: onProgress}
}

// RequestQuickScan asks for a partial analysis.
func (b *Budget) RequestQuickScan() {
	b.quick.Store(true)
}

// QuickScanRequested reports whether RequestQuickScan was called.
func (b *Budget) QuickScanRequested() bool {
	return b.quick.Load()
}

// Interrupt asks the analysis to stop without a result.
func (b *Budget) Interrupt() {
	b.interrupted.Store(true)
}

// Interrupted reports whether Interrupt was called.
func (b *Budget) Interrupted() bool {
	return b.interrupted.Load()
}

// SetProgress records the overall progress. Fractions never go backwards.
func (b *Budget) SetProgress(fraction float64, message string) {
	if fraction > 1 {
		fraction = 1
	}
	b.mu.Lock()
	if fraction < b.fraction {
		fraction = b.fraction
	}
	b.fraction = fraction
	b.message = message
	callback := b.onProgress
	b.mu.Unlock()
	if callback != nil {
		callback(fraction, message)
	}
}

// Progress returns the last recorded fraction and message.
func (b *Budget) Progress() (float64, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fraction, b.message
}

// stage maps the progress of one analysis stage onto its share of the whole.
type stage struct {
	budget *Budget
	start  float64
	weight float64
	name   string
}

func (b *Budget) stage(start, weight float64, name string) *stage {
	b.SetProgress(start, name)
	return &stage{budget: b, start: start, weight: weight, name: name}
}

// set reports fraction of the stage as done.
func (s *stage) set(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.budget.SetProgress(s.start+s.weight*fraction, s.name)
}

// sub returns the i-th of n equal parts of the stage.
func (s *stage) sub(i, n int) *stage {
	w := s.weight / float64(n)
	return &stage{budget: s.budget, start: s.start + w*float64(i), weight: w, name: s.name}
}

func (s *stage) done() {
	s.set(1)
}
