package harvest

import (
	"sync"

	"github.com/alvmarrod/wiki-wanted/internal/storage"
)

// Admission is the outcome of offering a page to the frontier
type Admission int

const (
	Admitted Admission = iota
	AlreadySeen
	OverBudget
)

// Frontier dedupes pages by normalized title and caps how many are fetched
type Frontier struct {
	mu       sync.Mutex
	seen     map[storage.LinkTarget]bool
	maxPages int
}

// NewFrontier creates a frontier admitting at most maxPages pages.
// maxPages <= 0 means no cap.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		seen:     make(map[storage.LinkTarget]bool),
		maxPages: maxPages,
	}
}

// Admit marks a page as scheduled if it is new and the budget allows
func (f *Frontier) Admit(page storage.LinkTarget) Admission {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[page] {
		return AlreadySeen
	}
	if f.maxPages > 0 && len(f.seen) >= f.maxPages {
		return OverBudget
	}
	f.seen[page] = true
	return Admitted
}

// Size returns how many pages were admitted
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
