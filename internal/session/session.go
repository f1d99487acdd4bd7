// Package session owns one map session: it loads the feed, keeps the visible
// pins in step with the viewport, and drives selection, enrichment and the
// detail overlay. All store writes happen on the goroutine running Run.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/enrich"
	"github.com/sells-group/mapinfo/internal/fetcher"
	"github.com/sells-group/mapinfo/internal/kml"
	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/store"
	"github.com/sells-group/mapinfo/internal/thin"
	"github.com/sells-group/mapinfo/internal/viewport"
)

// Map is the map widget the session drives.
type Map interface {
	SetCameraRegion(center model.LatLng, radiusKM float64)
	OnVisibleRegionChanged(fn func(viewport.Viewport))
	// SetPins replaces every pin on the map.
	SetPins(pins []model.Pin)
	OnPinClicked(fn func(lat, lng float64))
	OnMapBackgroundClicked(fn func())
	// ShowPlace fills the detail overlay with p.
	ShowPlace(p *model.Place)
	SetOverlayVisible(visible bool)
}

// Notifier shows dismissible messages to the user.
type Notifier interface {
	Alert(title, message string)
}

// LinkOpener opens a URL outside the map.
type LinkOpener interface {
	Open(ctx context.Context, url string) error
}

// Enricher resolves a street view image for a place, returning "" when none
// is available.
type Enricher interface {
	Lookup(ctx context.Context, p *model.Place) string
}

// Camera is the initial map region.
type Camera struct {
	Center   model.LatLng `json:"center"`
	RadiusKM float64      `json:"radius_km"`
}

// DefaultCamera frames Ireland.
var DefaultCamera = Camera{Center: model.LatLng{Lat: 53.4, Lng: -8.0}, RadiusKM: 250}

// Options configures a Session.
type Options struct {
	FeedURL  string
	Camera   Camera
	Viewport viewport.Options
}

// Deps are the session's collaborators. Enricher may be nil.
type Deps struct {
	Map      Map
	Notifier Notifier
	Opener   LinkOpener
	Fetcher  fetcher.Fetcher
	Enricher Enricher
}

// Stats is a snapshot of the session for status endpoints.
type Stats struct {
	Places         int            `json:"places"`
	Pins           int            `json:"pins"`
	Selected       string         `json:"selected,omitempty"`
	OverlayVisible bool           `json:"overlay_visible"`
	Scheduler      viewport.Stats `json:"scheduler"`
	SchedulerState string         `json:"scheduler_state"`
	Enrichment     *enrich.Stats  `json:"enrichment,omitempty"`
}

// Session is the single owner of a map session's state.
type Session struct {
	opts     Options
	m        Map
	notifier Notifier
	opener   LinkOpener
	fetcher  fetcher.Fetcher
	enricher Enricher

	store *store.PlaceStore
	sched *viewport.Scheduler

	events  chan func()
	done    chan struct{}
	runOnce sync.Once

	// Owned by the Run goroutine.
	ctx           context.Context
	enrichCancel  context.CancelFunc
	enrichGen     uint64
	overlayActive atomic.Bool

	pins atomic.Pointer[[]*model.Place]
}

// New wires a session to its collaborators. Call Run to start it.
func New(deps Deps, opts Options) *Session {
	if opts.Camera.RadiusKM <= 0 {
		opts.Camera = DefaultCamera
	}
	initial := viewport.FromRadius(opts.Camera.Center, opts.Camera.RadiusKM)
	opts.Viewport.Initial = &initial

	s := &Session{
		opts:     opts,
		m:        deps.Map,
		notifier: deps.Notifier,
		opener:   deps.Opener,
		fetcher:  deps.Fetcher,
		enricher: deps.Enricher,
		store:    store.New(),
		events:   make(chan func(), 64),
		done:     make(chan struct{}),
		ctx:      context.Background(),
	}
	s.sched = viewport.NewScheduler(s.store, thin.Thinner{}, viewport.PublisherFunc(s.publish), opts.Viewport)
	empty := []*model.Place{}
	s.pins.Store(&empty)

	s.m.OnVisibleRegionChanged(func(v viewport.Viewport) {
		s.post(func() { s.sched.ViewportChanged(v) })
	})
	s.m.OnPinClicked(func(lat, lng float64) {
		s.post(func() { s.pinClicked(lat, lng) })
	})
	s.m.OnMapBackgroundClicked(func() {
		s.post(s.hideOverlay)
	})
	return s
}

// Store exposes the place store for read access.
func (s *Session) Store() *store.PlaceStore { return s.store }

// Selected returns the selected place, or nil.
func (s *Session) Selected() *model.Place { return s.store.Selected() }

// Pins returns the most recently published pin set.
func (s *Session) Pins() []*model.Place { return *s.pins.Load() }

// Viewport returns the latest known viewport.
func (s *Session) Viewport() viewport.Viewport {
	v, _ := s.sched.Latest()
	return v
}

// FeedURL returns the configured feed location.
func (s *Session) FeedURL() string { return s.opts.FeedURL }

// Run processes session events until ctx is done. It positions the camera,
// then serializes every callback, feed result and enrichment result.
func (s *Session) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return eris.New("session: already running")
	}
	defer close(s.done)
	defer s.sched.Close()

	s.ctx = ctx
	unsubscribe := s.store.Subscribe(s.onStoreEvent)
	defer unsubscribe()

	s.m.SetCameraRegion(s.opts.Camera.Center, s.opts.Camera.RadiusKM)

	for {
		select {
		case <-ctx.Done():
			if s.enrichCancel != nil {
				s.enrichCancel()
			}
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

// post queues fn for the Run goroutine. It reports false once the session
// has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the Run goroutine and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.post(func() { fn(); close(finished) }) {
		return eris.New("session: stopped")
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "session: wait for event loop")
	case <-s.done:
		return eris.New("session: stopped")
	}
}

// LoadFeed downloads and parses the configured feed, replaces the store
// contents and triggers an immediate pin recompute. Failures are alerted once
// and returned; nothing is retried.
func (s *Session) LoadFeed(ctx context.Context) error {
	places, err := s.fetchFeed(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.notifier.Alert(FeedAlertTitle, err.Error())
		}
		zap.L().Error("session: feed load failed",
			zap.String("url", s.opts.FeedURL),
			zap.Error(err),
		)
		return err
	}

	return s.do(ctx, func() {
		s.store.Replace(places)
		s.sched.Trigger()
	})
}

func (s *Session) fetchFeed(ctx context.Context) ([]*model.Place, error) {
	if s.opts.FeedURL == "" {
		return nil, &FeedFetchError{Err: eris.New("no feed url configured")}
	}

	body, err := s.fetcher.Download(ctx, s.opts.FeedURL)
	if err != nil {
		return nil, &FeedFetchError{URL: s.opts.FeedURL, Err: err}
	}
	defer body.Close() //nolint:errcheck

	places, _, err := kml.Parse(ctx, body)
	if err != nil {
		return nil, err
	}
	return places, nil
}

// publish runs on the scheduler's goroutine.
func (s *Session) publish(places []*model.Place) {
	s.pins.Store(&places)
	s.m.SetPins(lo.Map(places, func(p *model.Place, _ int) model.Pin {
		return model.PinFor(p)
	}))
}

func (s *Session) pinClicked(lat, lng float64) {
	p, ok := s.store.FindByCoordinate(lat, lng)
	if !ok {
		zap.L().Debug("session: click matched no place",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
		)
		return
	}

	if s.enrichCancel != nil {
		s.enrichCancel()
	}
	s.enrichGen++
	gen := s.enrichGen
	ctx, cancel := context.WithCancel(s.ctx)
	s.enrichCancel = cancel

	if s.enricher == nil {
		s.selectPlace(gen, p, "")
		return
	}
	go func() {
		url := s.enricher.Lookup(ctx, p)
		s.post(func() { s.selectPlace(gen, p, url) })
	}()
}

// selectPlace applies an enrichment result unless a later click superseded
// it.
func (s *Session) selectPlace(gen uint64, p *model.Place, url string) {
	if gen != s.enrichGen {
		return
	}
	s.enrichCancel()
	s.enrichCancel = nil

	s.store.SetStreetView(p, url)
	s.store.Select(p)
	s.m.SetOverlayVisible(true)
	s.overlayActive.Store(true)
}

// HideOverlay hides the detail overlay. The selected place is kept.
func (s *Session) HideOverlay() {
	s.post(s.hideOverlay)
}

func (s *Session) hideOverlay() {
	s.m.SetOverlayVisible(false)
	s.overlayActive.Store(false)
}

// OverlayVisible reports whether the detail overlay is showing.
func (s *Session) OverlayVisible() bool { return s.overlayActive.Load() }

// onStoreEvent keeps the overlay content in step with the selected place.
func (s *Session) onStoreEvent(ev store.Event) {
	switch ev.Kind {
	case store.SelectionChanged:
		if ev.Place != nil {
			s.m.ShowPlace(ev.Place)
		}
	case store.PlaceUpdated:
		if ev.Place != nil && ev.Place == s.store.Selected() {
			s.m.ShowPlace(ev.Place)
		}
	case store.PlacesReplaced:
		zap.L().Info("session: places loaded", zap.Int("count", ev.Count))
	}
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() Stats {
	st := Stats{
		Places:         s.store.Len(),
		Pins:           len(s.Pins()),
		OverlayVisible: s.OverlayVisible(),
		Scheduler:      s.sched.Stats(),
		SchedulerState: s.sched.State().String(),
	}
	if p := s.store.Selected(); p != nil {
		st.Selected = p.Name
	}
	if e, ok := s.enricher.(interface{ Stats() enrich.Stats }); ok {
		es := e.Stats()
		st.Enrichment = &es
	}
	return st
}
