package viewport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/model"
)

// DefaultDebounce is how long the viewport must stay still before pins are
// recomputed.
const DefaultDebounce = 200 * time.Millisecond

// DefaultMaxPins bounds the number of pins shown at once.
const DefaultMaxPins = 35

// State is the scheduler's position in its recompute cycle.
type State int

const (
	// StateIdle means nothing is pending.
	StateIdle State = iota
	// StateDebouncing means a recompute timer is armed.
	StateDebouncing
	// StateComputing means a recompute is running.
	StateComputing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDebouncing:
		return "debouncing"
	case StateComputing:
		return "computing"
	default:
		return "unknown"
	}
}

// Source supplies the places inside a viewport, in feed order.
type Source interface {
	Within(v Viewport) []*model.Place
}

// Selector reduces candidates to at most limit places.
type Selector interface {
	Select(candidates []*model.Place, limit int, ref model.LatLng) []*model.Place
}

// Publisher receives each recompute result. SetPins has replace-all
// semantics.
type Publisher interface {
	SetPins(places []*model.Place)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(places []*model.Place)

// SetPins calls f.
func (f PublisherFunc) SetPins(places []*model.Place) { f(places) }

// Options configures a Scheduler.
type Options struct {
	Debounce time.Duration
	MaxPins  int
	// Initial seeds the viewport used before the map reports one.
	Initial *Viewport
}

// Stats counts recompute outcomes.
type Stats struct {
	Started   int64 `json:"started"`
	Published int64 `json:"published"`
	Discarded int64 `json:"discarded"`
}

// Scheduler debounces viewport changes and publishes the thinned set of
// visible places. Every new event supersedes pending and in-flight work: a
// superseded recompute never publishes.
type Scheduler struct {
	source    Source
	selector  Selector
	publisher Publisher
	debounce  time.Duration
	maxPins   int

	mu          sync.Mutex
	state       State
	gen         uint64
	timer       *time.Timer
	cancel      context.CancelFunc
	latest      Viewport
	hasViewport bool
	closed      bool

	// publishMu orders publishes so that a recompute that lost the race to
	// a newer one cannot write after it.
	publishMu sync.Mutex

	started   atomic.Int64
	published atomic.Int64
	discarded atomic.Int64
}

// NewScheduler creates a scheduler. Zero options fall back to the defaults.
func NewScheduler(source Source, selector Selector, publisher Publisher, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxPins <= 0 {
		opts.MaxPins = DefaultMaxPins
	}
	s := &Scheduler{
		source:    source,
		selector:  selector,
		publisher: publisher,
		debounce:  opts.Debounce,
		maxPins:   opts.MaxPins,
	}
	if opts.Initial != nil {
		s.latest = *opts.Initial
		s.hasViewport = true
	}
	return s
}

// ViewportChanged records v as the latest viewport and (re)arms the debounce
// timer, cancelling anything pending or in flight.
func (s *Scheduler) ViewportChanged(v Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.latest = v
	s.hasViewport = true
	ctx, gen := s.supersedeLocked()

	s.state = StateDebouncing
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(ctx, gen) })
}

// Trigger recomputes immediately for the latest viewport, without waiting
// for a debounce. It is a no-op until a viewport is known.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.closed || !s.hasViewport {
		s.mu.Unlock()
		return
	}
	ctx, gen := s.supersedeLocked()
	s.state = StateComputing
	v := s.latest
	s.mu.Unlock()

	go s.compute(ctx, gen, v)
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Latest returns the most recent viewport and whether one is known.
func (s *Scheduler) Latest() (Viewport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasViewport
}

// Stats returns recompute counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Started:   s.started.Load(),
		Published: s.published.Load(),
		Discarded: s.discarded.Load(),
	}
}

// Close cancels pending and in-flight work. Later events are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.supersedeLocked()
	s.closed = true
	s.state = StateIdle
}

// supersedeLocked invalidates outstanding work and returns the context and
// generation for the next recompute.
func (s *Scheduler) supersedeLocked() (context.Context, uint64) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	return ctx, s.gen
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.gen == gen
}

func (s *Scheduler) fire(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if ctx.Err() != nil || s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = StateComputing
	v := s.latest
	s.mu.Unlock()

	s.compute(ctx, gen, v)
}

func (s *Scheduler) compute(ctx context.Context, gen uint64, v Viewport) {
	s.started.Add(1)

	candidates := s.source.Within(v)
	if ctx.Err() != nil {
		s.discard(gen, "filter")
		return
	}

	selected := s.selector.Select(candidates, s.maxPins, v.Center)
	if ctx.Err() != nil {
		s.discard(gen, "select")
		return
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if ctx.Err() != nil || !s.current(gen) {
		s.discard(gen, "publish")
		return
	}

	s.publisher.SetPins(selected)
	s.published.Add(1)

	s.mu.Lock()
	if s.gen == gen {
		s.state = StateIdle
	}
	s.mu.Unlock()

	zap.L().Debug("viewport: pins published",
		zap.Int("candidates", len(candidates)),
		zap.Int("pins", len(selected)),
		zap.Uint64("generation", gen),
	)
}

func (s *Scheduler) discard(gen uint64, stage string) {
	s.discarded.Add(1)
	zap.L().Debug("viewport: recompute superseded",
		zap.String("stage", stage),
		zap.Uint64("generation", gen),
	)
}
