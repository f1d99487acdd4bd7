package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/viewport"
)

func samplePlaces() []*model.Place {
	return []*model.Place{
		{Name: "Dublin", Lat: 53.3498, Lng: -6.2603},
		{Name: "Cork", Lat: 51.8985, Lng: -8.4756},
		{Name: "Galway", Lat: 53.2707, Lng: -9.0568},
		{Name: "Athlone", Lat: 53.4239, Lng: -7.9407},
		{Name: "Limerick", Lat: 52.6638, Lng: -8.6267},
	}
}

func names(ps []*model.Place) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestReplaceAndAll(t *testing.T) {
	s := New()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.All())

	in := samplePlaces()
	s.Replace(in)

	assert.Equal(t, 5, s.Len())
	assert.Equal(t, in, s.All())

	all := s.All()
	all[0] = nil
	assert.NotNil(t, s.All()[0], "All returns a copy")

	s.Replace(in[:2])
	assert.Equal(t, []string{"Dublin", "Cork"}, names(s.All()))
}

func TestReplaceClearsSelection(t *testing.T) {
	s := New()
	in := samplePlaces()
	s.Replace(in)
	s.Select(in[1])
	require.Same(t, in[1], s.Selected())

	s.Replace(samplePlaces())
	assert.Nil(t, s.Selected())
}

func TestWithin(t *testing.T) {
	s := New()
	s.Replace(samplePlaces())

	// Covers Athlone, Galway and Limerick but not Dublin or Cork.
	v := viewport.Viewport{Center: model.LatLng{Lat: 53.0, Lng: -8.5}, LatSpan: 1.0, LngSpan: 1.4}
	assert.Equal(t, []string{"Galway", "Athlone", "Limerick"}, names(s.Within(v)), "feed order")

	everything := viewport.Viewport{Center: model.LatLng{Lat: 53.4, Lng: -8.0}, LatSpan: 10, LngSpan: 10}
	assert.Equal(t, names(samplePlaces()), names(s.Within(everything)))

	nowhere := viewport.Viewport{Center: model.LatLng{Lat: 0, Lng: 0}, LatSpan: 1, LngSpan: 1}
	assert.Empty(t, s.Within(nowhere))
}

func TestWithin_InclusiveBounds(t *testing.T) {
	s := New()
	s.Replace([]*model.Place{
		{Name: "corner", Lat: 52, Lng: -10},
		{Name: "edge", Lat: 54, Lng: -8},
		{Name: "outside", Lat: 54.0001, Lng: -8},
	})

	v := viewport.Viewport{Center: model.LatLng{Lat: 53, Lng: -8}, LatSpan: 2, LngSpan: 4}
	assert.Equal(t, []string{"corner", "edge"}, names(s.Within(v)))
}

func TestWithin_EmptyStore(t *testing.T) {
	s := New()
	assert.Empty(t, s.Within(viewport.Viewport{LatSpan: 180, LngSpan: 360}))
}

func TestWithin_ManyPoints(t *testing.T) {
	var in []*model.Place
	for i := range 400 {
		in = append(in, &model.Place{Name: "p", Lat: 51.5 + float64(i%20)*0.2, Lng: -10 + float64(i/20)*0.2})
	}
	s := New()
	s.Replace(in)

	v := viewport.Viewport{Center: model.LatLng{Lat: 53.4, Lng: -8.0}, LatSpan: 1, LngSpan: 1}
	var want []*model.Place
	for _, p := range in {
		if v.Contains(p.Position()) {
			want = append(want, p)
		}
	}
	require.NotEmpty(t, want)
	assert.Equal(t, want, s.Within(v))
}

func TestFindByCoordinate(t *testing.T) {
	s := New()
	in := samplePlaces()
	s.Replace(in)

	p, ok := s.FindByCoordinate(53.3498, -6.2603)
	require.True(t, ok)
	assert.Same(t, in[0], p)

	p, ok = s.FindByCoordinate(53.3498+5e-7, -6.2603-5e-7)
	require.True(t, ok)
	assert.Same(t, in[0], p)

	_, ok = s.FindByCoordinate(53.3498+1e-4, -6.2603)
	assert.False(t, ok)
}

func TestFindByCoordinate_FirstMatchWins(t *testing.T) {
	s := New()
	first := &model.Place{Name: "first", Lat: 53, Lng: -8}
	second := &model.Place{Name: "second", Lat: 53, Lng: -8}
	s.Replace([]*model.Place{first, second})

	p, ok := s.FindByCoordinate(53, -8)
	require.True(t, ok)
	assert.Same(t, first, p)
}

func TestSelectNotifies(t *testing.T) {
	s := New()
	in := samplePlaces()
	s.Replace(in)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	s.Select(in[2])
	s.Select(in[2])
	s.Select(nil)

	require.Len(t, events, 2, "reselecting the same place does not notify")
	assert.Equal(t, Event{Kind: SelectionChanged, Place: in[2], Count: 5}, events[0])
	assert.Equal(t, Event{Kind: SelectionChanged, Count: 5}, events[1])
	assert.Nil(t, s.Selected())
}

func TestSetStreetView(t *testing.T) {
	s := New()
	in := samplePlaces()
	s.Replace(in)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })

	s.SetStreetView(in[0], "https://img.example/dublin.jpg")
	assert.Equal(t, "https://img.example/dublin.jpg", in[0].StreetViewImageURL())
	assert.Same(t, in[0], s.All()[0], "mutated in place")

	s.SetStreetView(nil, "ignored")

	require.Len(t, events, 1)
	assert.Equal(t, PlaceUpdated, events[0].Kind)
	assert.Same(t, in[0], events[0].Place)
}

func TestSubscribe(t *testing.T) {
	s := New()

	var order []string
	unsubA := s.Subscribe(func(Event) { order = append(order, "a") })
	s.Subscribe(func(Event) { order = append(order, "b") })

	s.Replace(samplePlaces())
	assert.Equal(t, []string{"a", "b"}, order)

	unsubA()
	unsubA()
	order = nil
	s.Replace(nil)
	assert.Equal(t, []string{"b"}, order)
}

func TestObserverCanReadStore(t *testing.T) {
	s := New()
	in := samplePlaces()

	var seen int
	s.Subscribe(func(ev Event) {
		if ev.Kind == PlacesReplaced {
			seen = s.Len()
		}
	})

	s.Replace(in)
	assert.Equal(t, 5, seen, "observers run after the lock is released")
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "places_replaced", PlacesReplaced.String())
	assert.Equal(t, "selection_changed", SelectionChanged.String())
	assert.Equal(t, "place_updated", PlaceUpdated.String())
	assert.Equal(t, "unknown", EventKind(0).String())
}
