// Package mapview serves the map collaborator over a websocket. A Hub relays
// session output (camera, pins, overlay content, alerts, links) to every
// connected browser and feeds their gestures back to the session.
package mapview

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/viewport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 32
	maxPending     = 8
)

// ErrNoClients is returned by Open when no browser could receive the URL.
var ErrNoClients = eris.New("mapview: no connected clients")

// Options configures the camera restriction sent with every camera message.
type Options struct {
	Bounds  *viewport.Bounds
	MinZoom int
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub implements the session's Map, Notifier and LinkOpener over websockets.
// The latest camera, pins, place and overlay messages are replayed to every
// client as it connects.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client
	camera  []byte
	pins    []byte
	place   []byte
	overlay []byte
	pending [][]byte

	cbMu         sync.RWMutex
	onRegion     func(viewport.Viewport)
	onPin        func(lat, lng float64)
	onBackground func()
	onHide       func()
	onLink       func(target string)
}

// NewHub returns a hub with no clients.
func NewHub(opts Options) *Hub {
	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[uuid.UUID]*client),
	}
}

// SetCameraRegion positions every client's camera.
func (h *Hub) SetCameraRegion(center model.LatLng, radiusKM float64) {
	h.publish(TypeCamera, CameraMessage{
		Center:   center,
		RadiusKM: radiusKM,
		Bounds:   h.opts.Bounds,
		MinZoom:  h.opts.MinZoom,
	}, &h.camera)
}

// SetPins replaces the pins on every client.
func (h *Hub) SetPins(pins []model.Pin) {
	h.publish(TypePins, PinsCollection(pins), &h.pins)
}

// ShowPlace fills the detail overlay.
func (h *Hub) ShowPlace(p *model.Place) {
	if p == nil {
		return
	}
	h.publish(TypePlace, NewPlaceMessage(p), &h.place)
}

// SetOverlayVisible shows or hides the detail overlay.
func (h *Hub) SetOverlayVisible(visible bool) {
	h.publish(TypeOverlay, OverlayMessage{Visible: visible}, &h.overlay)
}

// Alert shows a notice on every connected client. With no client connected
// the alert is held for the next one to connect.
func (h *Hub) Alert(title, message string) {
	msg, err := encode(TypeAlert, AlertMessage{Title: title, Message: message})
	if err != nil {
		zap.L().Error("mapview: encode message", zap.String("type", TypeAlert), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.broadcastLocked(msg) > 0 {
		return
	}
	if len(h.pending) == maxPending {
		h.pending = h.pending[1:]
	}
	h.pending = append(h.pending, msg)
	zap.L().Warn("mapview: alert held until a client connects",
		zap.String("title", title),
		zap.String("message", message),
	)
}

// Open asks the connected clients to open url.
func (h *Hub) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "mapview: open")
	}
	if n := h.publish(TypeOpenURL, OpenURLMessage{URL: url}, nil); n == 0 {
		return ErrNoClients
	}
	return nil
}

// OnVisibleRegionChanged registers the region callback.
func (h *Hub) OnVisibleRegionChanged(fn func(viewport.Viewport)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.onRegion = fn
}

// OnPinClicked registers the marker click callback.
func (h *Hub) OnPinClicked(fn func(lat, lng float64)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.onPin = fn
}

// OnMapBackgroundClicked registers the background click callback.
func (h *Hub) OnMapBackgroundClicked(fn func()) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.onBackground = fn
}

// OnHideOverlay registers the overlay close button callback.
func (h *Hub) OnHideOverlay(fn func()) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.onHide = fn
}

// OnOpenLink registers the link button callback. target is one of
// instagram, tiktok or maps.
func (h *Hub) OnOpenLink(fn func(target string)) {
	h.cbMu.Lock()
	defer h.cbMu.Unlock()
	h.onLink = fn
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

// publish encodes a message, optionally remembers it for replay, and queues it
// for every client. It returns the number of clients it was queued for.
func (h *Hub) publish(typ string, data any, last *[]byte) int {
	msg, err := encode(typ, data)
	if err != nil {
		zap.L().Error("mapview: encode message", zap.String("type", typ), zap.Error(err))
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if last != nil {
		*last = msg
	}
	return h.broadcastLocked(msg)
}

func (h *Hub) broadcastLocked(msg []byte) int {
	sent := 0
	for id, c := range h.clients {
		select {
		case c.send <- msg:
			sent++
		default:
			zap.L().Warn("mapview: dropping slow client", zap.String("client", id.String()))
			delete(h.clients, id)
			close(c.send)
		}
	}
	return sent
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("mapview: websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)
	zap.L().Info("mapview: client connected", zap.String("client", c.id.String()))

	go h.writeLoop(c)
	h.readLoop(c)

	h.unregister(c)
	zap.L().Info("mapview: client disconnected", zap.String("client", c.id.String()))
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range [][]byte{h.camera, h.pins, h.place, h.overlay} {
		if msg != nil {
			c.send <- msg
		}
	}
	for _, msg := range h.pending {
		c.send <- msg
	}
	h.pending = nil
	h.clients[c.id] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer c.conn.Close() //nolint:errcheck

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := h.dispatch(data); err != nil {
			zap.L().Debug("mapview: ignoring message",
				zap.String("client", c.id.String()),
				zap.Error(err),
			)
		}
	}
}

// dispatch decodes one inbound message and invokes its callback.
func (h *Hub) dispatch(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return eris.Wrap(err, "mapview: decode envelope")
	}

	h.cbMu.RLock()
	defer h.cbMu.RUnlock()

	switch env.Type {
	case TypeRegion:
		var v viewport.Viewport
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return eris.Wrap(err, "mapview: decode region")
		}
		if !v.Center.Valid() || v.LatSpan < 0 || v.LngSpan < 0 {
			return eris.Errorf("mapview: invalid region %+v", v)
		}
		if h.onRegion != nil {
			h.onRegion(v)
		}
	case TypePinClick:
		var m PinClickMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return eris.Wrap(err, "mapview: decode pin click")
		}
		if h.onPin != nil {
			h.onPin(m.Lat, m.Lng)
		}
	case TypeMapClick:
		if h.onBackground != nil {
			h.onBackground()
		}
	case TypeHideOverlay:
		if h.onHide != nil {
			h.onHide()
		}
	case TypeOpenLink:
		var m OpenLinkMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return eris.Wrap(err, "mapview: decode open link")
		}
		if h.onLink != nil {
			h.onLink(m.Target)
		}
	default:
		return eris.Errorf("mapview: unknown message type %q", env.Type)
	}
	return nil
}
