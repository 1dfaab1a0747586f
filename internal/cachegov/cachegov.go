// Package cachegov is the cache governor: it bounds the number of cases
// held in the time-series LRU and fans an eviction out to every per-case
// cache (field files, time directories, series history, log offsets) so a
// dropped case leaves no trace behind. A single explicit Governor object
// is created once and handed to every component, rather than each
// component keeping its own unbounded module-level cache.
package cachegov

import (
	"container/list"
	"sync"

	"github.com/dhruvhaldar/FOAMFlask-sub000/internal/logging"
)

const logTag = "cachegov"

// DefaultCapacity is the default number of cases kept live, overridable by
// the CACHE_MAX_CASES configuration setting.
const DefaultCapacity = 5

// Evictor is implemented by every per-component cache (field, timeindex,
// logparser, series) so the governor can purge one case's entries from it.
type Evictor interface {
	ClearCase(caseDir string)
}

// Governor tracks LRU order over case directories and notifies registered
// Evictors when a case falls out of the window.
type Governor struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
	evictors []Evictor
}

// New builds a Governor bounded to capacity cases. capacity <= 0 falls
// back to DefaultCapacity.
func New(capacity int) *Governor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Governor{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Register adds an Evictor that will be told to ClearCase whenever the
// governor drops a case. It holds the same lock as Touch, so it is safe to
// call concurrently; an Evictor only hears about drops made after it was
// registered.
func (g *Governor) Register(e Evictor) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evictors = append(g.evictors, e)
}

// Touch marks caseDir as most-recently-used, evicting the least-recently
// used case if this insertion pushes the governor past capacity.
func (g *Governor) Touch(caseDir string) {
	g.mu.Lock()
	var evicted string
	hadEviction := false

	if el, ok := g.index[caseDir]; ok {
		g.order.MoveToFront(el)
	} else {
		el := g.order.PushFront(caseDir)
		g.index[caseDir] = el
		if g.order.Len() > g.capacity {
			back := g.order.Back()
			if back != nil {
				evicted = back.Value.(string)
				hadEviction = true
				g.order.Remove(back)
				delete(g.index, evicted)
			}
		}
	}
	evictors := append([]Evictor(nil), g.evictors...)
	g.mu.Unlock()

	if hadEviction {
		logging.Infof(logTag, "evicting case %s (LRU capacity %d)", evicted, g.capacity)
		for _, e := range evictors {
			e.ClearCase(evicted)
		}
	}
}

// Evict explicitly drops caseDir from every registered cache, used by the
// clear_cache(case) operation.
func (g *Governor) Evict(caseDir string) {
	g.mu.Lock()
	if el, ok := g.index[caseDir]; ok {
		g.order.Remove(el)
		delete(g.index, caseDir)
	}
	evictors := append([]Evictor(nil), g.evictors...)
	g.mu.Unlock()

	for _, e := range evictors {
		e.ClearCase(caseDir)
	}
}

// ClearAll drops every tracked case from every registered cache.
func (g *Governor) ClearAll() {
	g.mu.Lock()
	cases := make([]string, 0, len(g.index))
	for c := range g.index {
		cases = append(cases, c)
	}
	g.order.Init()
	g.index = make(map[string]*list.Element)
	evictors := append([]Evictor(nil), g.evictors...)
	g.mu.Unlock()

	for _, c := range cases {
		for _, e := range evictors {
			e.ClearCase(c)
		}
	}
}

// Resident reports the cases currently within the LRU window, most
// recently used first. Intended for tests and diagnostics.
func (g *Governor) Resident() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, g.order.Len())
	for el := g.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}
