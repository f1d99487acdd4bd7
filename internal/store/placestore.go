// Package store holds the session's places, the selected place, and the
// observers that are notified when either changes.
package store

import (
	"slices"
	"sync"

	"github.com/asim/quadtree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/viewport"
)

// EventKind identifies what changed in the store.
type EventKind int

const (
	// PlacesReplaced fires after Replace swaps the whole collection.
	PlacesReplaced EventKind = iota + 1
	// SelectionChanged fires when the selected place changes.
	SelectionChanged
	// PlaceUpdated fires when a place is mutated in place.
	PlaceUpdated
)

func (k EventKind) String() string {
	switch k {
	case PlacesReplaced:
		return "places_replaced"
	case SelectionChanged:
		return "selection_changed"
	case PlaceUpdated:
		return "place_updated"
	default:
		return "unknown"
	}
}

// Event describes a store change. Place is the selected or updated place
// (nil when the selection was cleared). Count is the collection size.
type Event struct {
	Kind  EventKind
	Place *model.Place
	Count int
}

// Observer receives store events.
type Observer func(Event)

// boundsSlack widens index searches so points sitting exactly on a viewport
// edge are returned regardless of how the tree compares boundaries. Results
// are filtered exactly afterwards.
const boundsSlack = 1e-9

// entry is the payload stored in the quadtree.
type entry struct {
	idx   int
	place *model.Place
}

type subscriber struct {
	id string
	fn Observer
}

// PlaceStore is an ordered, in-memory collection of places with a spatial
// index and a single selected place. It is safe for concurrent use; observers
// are called synchronously after the lock is released.
type PlaceStore struct {
	mu       sync.RWMutex
	places   []*model.Place
	tree     *quadtree.QuadTree
	overflow []entry
	selected *model.Place

	subMu sync.Mutex
	subs  []subscriber
}

// New creates an empty store.
func New() *PlaceStore {
	return &PlaceStore{tree: newTree()}
}

func newTree() *quadtree.QuadTree {
	center := quadtree.NewPoint(0, 0, nil)
	half := quadtree.NewPoint(90, 180, nil)
	return quadtree.New(quadtree.NewAABB(center, half), 0, nil)
}

// Replace swaps the collection for places, keeping their order, and clears
// the selection.
func (s *PlaceStore) Replace(places []*model.Place) {
	tree := newTree()
	var overflow []entry
	for i, p := range places {
		e := entry{idx: i, place: p}
		if !tree.Insert(quadtree.NewPoint(p.Lat, p.Lng, e)) {
			overflow = append(overflow, e)
		}
	}
	if len(overflow) > 0 {
		zap.L().Debug("store: places outside index boundary",
			zap.Int("count", len(overflow)),
		)
	}

	s.mu.Lock()
	s.places = slices.Clone(places)
	s.tree = tree
	s.overflow = overflow
	s.selected = nil
	n := len(s.places)
	s.mu.Unlock()

	s.notify(Event{Kind: PlacesReplaced, Count: n})
}

// All returns a copy of the collection in feed order.
func (s *PlaceStore) All() []*model.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.places)
}

// Len returns the number of places.
func (s *PlaceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.places)
}

// Within returns the places inside v, bounds included, in feed order.
func (s *PlaceStore) Within(v viewport.Viewport) []*model.Place {
	center := quadtree.NewPoint(v.Center.Lat, v.Center.Lng, nil)
	half := quadtree.NewPoint(v.LatSpan/2+boundsSlack, v.LngSpan/2+boundsSlack, nil)
	b := v.Bounds()

	s.mu.RLock()
	hits := make([]entry, 0)
	for _, pt := range s.tree.Search(quadtree.NewAABB(center, half)) {
		if e, ok := pt.Data().(entry); ok && b.Contains(e.place.Position()) {
			hits = append(hits, e)
		}
	}
	for _, e := range s.overflow {
		if b.Contains(e.place.Position()) {
			hits = append(hits, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b entry) int { return a.idx - b.idx })
	out := make([]*model.Place, len(hits))
	for i, e := range hits {
		out[i] = e.place
	}
	return out
}

// FindByCoordinate returns the first place, in feed order, within
// model.CoordinateTolerance of (lat, lng) on both axes.
func (s *PlaceStore) FindByCoordinate(lat, lng float64) (*model.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.places {
		if p.MatchesCoordinate(lat, lng, model.CoordinateTolerance) {
			return p, true
		}
	}
	return nil, false
}

// Select makes p the selected place. Passing nil clears the selection.
// Observers are only notified when the selection actually changes.
func (s *PlaceStore) Select(p *model.Place) {
	s.mu.Lock()
	changed := s.selected != p
	s.selected = p
	s.mu.Unlock()

	if changed {
		s.notify(Event{Kind: SelectionChanged, Place: p, Count: s.Len()})
	}
}

// Selected returns the selected place, or nil.
func (s *PlaceStore) Selected() *model.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetStreetView sets p's street view image without replacing p and notifies
// observers.
func (s *PlaceStore) SetStreetView(p *model.Place, url string) {
	if p == nil {
		return
	}
	p.SetStreetViewImageURL(url)
	s.notify(Event{Kind: PlaceUpdated, Place: p, Count: s.Len()})
}

// Subscribe registers fn and returns a function that removes it.
func (s *PlaceStore) Subscribe(fn Observer) (unsubscribe func()) {
	id := uuid.NewString()

	s.subMu.Lock()
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *PlaceStore) notify(ev Event) {
	s.subMu.Lock()
	subs := slices.Clone(s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
