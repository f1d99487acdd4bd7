package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/mapinfo/internal/config"
	"github.com/sells-group/mapinfo/internal/enrich"
	"github.com/sells-group/mapinfo/internal/fetcher"
	"github.com/sells-group/mapinfo/internal/mapview"
	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/resilience"
	"github.com/sells-group/mapinfo/internal/session"
	"github.com/sells-group/mapinfo/internal/viewport"
	"github.com/sells-group/mapinfo/pkg/streetview"
)

const shutdownTimeout = 5 * time.Second

var (
	servePort    int
	serveFeedURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the place map to browser clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		feedURL := serveFeedURL
		if feedURL == "" {
			feedURL = cfg.Feed.ResolveURL()
		}

		return serve(ctx, cfg, port, feedURL)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveFeedURL, "feed-url", "", "KML feed URL (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// app is the wired map server.
type app struct {
	hub      *mapview.Hub
	session  *session.Session
	enricher *enrich.Enricher
	handler  http.Handler
}

// newApp wires the hub, session and enrichment from configuration.
func newApp(c *config.Config, feedURL string, f fetcher.Fetcher, sv streetview.Client) (*app, error) {
	hub := mapview.NewHub(mapview.Options{
		Bounds:  mapBounds(c.Map.Bounds),
		MinZoom: c.Map.MinZoom,
	})

	deps := session.Deps{Map: hub, Notifier: hub, Opener: hub, Fetcher: f}
	a := &app{hub: hub}
	if c.StreetView.APIKey != "" {
		if sv == nil {
			sv = streetview.NewClient(c.StreetView.APIKey, streetview.WithBaseURL(c.StreetView.BaseURL))
		}
		e, err := enrich.New(sv, enrichOptions(c.StreetView))
		if err != nil {
			return nil, err
		}
		a.enricher = e
		deps.Enricher = e
	} else {
		zap.L().Info("street view enrichment disabled: no api key")
	}

	a.session = session.New(deps, sessionOptions(c, feedURL))
	hub.OnHideOverlay(a.session.HideOverlay)
	hub.OnOpenLink(a.openLink)
	a.handler = mapview.NewRouter(hub, a.session)
	return a, nil
}

func (a *app) openLink(name string) {
	target, err := session.ParseLinkTarget(name)
	if err != nil {
		zap.L().Debug("ignoring open link request", zap.String("target", name), zap.Error(err))
		return
	}
	// Failures are alerted by the session.
	_ = a.session.OpenLink(context.Background(), target)
}

func (a *app) close() {
	a.hub.Close()
	if a.enricher != nil {
		a.enricher.Close()
	}
}

func serve(ctx context.Context, c *config.Config, port int, feedURL string) error {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.Feed.UserAgent,
		Timeout:   c.Feed.Timeout(),
	})
	a, err := newApp(c, feedURL, f, nil)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.session.Run(gctx)
	})
	g.Go(func() error {
		// Feed failures are alerted to clients; the map stays up.
		_ = a.session.LoadFeed(gctx)
		return nil
	})
	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", port), zap.String("feed", feedURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown
		<-gctx.Done()
		zap.L().Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.hub.Close()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func mapBounds(b config.BoundsConfig) *viewport.Bounds {
	if b == (config.BoundsConfig{}) {
		return nil
	}
	return &viewport.Bounds{MinLat: b.MinLat, MinLng: b.MinLng, MaxLat: b.MaxLat, MaxLng: b.MaxLng}
}

func sessionOptions(c *config.Config, feedURL string) session.Options {
	return session.Options{
		FeedURL: feedURL,
		Camera: session.Camera{
			Center:   model.LatLng{Lat: c.Map.CenterLat, Lng: c.Map.CenterLng},
			RadiusKM: c.Map.RadiusKM,
		},
		Viewport: viewport.Options{
			Debounce: time.Duration(c.Viewport.DebounceMS) * time.Millisecond,
			MaxPins:  c.Viewport.MaxPins,
		},
	}
}

func enrichOptions(sv config.StreetViewConfig) enrich.Options {
	return enrich.Options{
		APIKey:    sv.APIKey,
		CacheTTL:  time.Duration(sv.CacheTTLMins) * time.Minute,
		Timeout:   time.Duration(sv.TimeoutSecs) * time.Second,
		RateLimit: rate.Limit(sv.RateLimit),
		Breaker: resilience.BreakerConfig{
			FailureThreshold: sv.FailureThreshold,
			Cooldown:         time.Duration(sv.CooldownSecs) * time.Second,
		},
	}
}
