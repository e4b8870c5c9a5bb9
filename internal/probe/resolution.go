package probe

import (
	"sync"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

// resolution is a one-shot outcome slot. Several events may try to resolve a
// probe (response, transport error, timeout); only the first is kept.
type resolution struct {
	once sync.Once
	ch   chan domain.Outcome
}

func newResolution() *resolution {
	return &resolution{ch: make(chan domain.Outcome, 1)}
}

// resolve stores o if nothing was stored before and reports whether it did.
func (r *resolution) resolve(o domain.Outcome) bool {
	won := false
	r.once.Do(func() {
		r.ch <- o
		won = true
	})
	return won
}

// wait blocks until the first outcome is available.
func (r *resolution) wait() domain.Outcome {
	return <-r.ch
}
