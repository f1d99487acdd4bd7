package session

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/model"
)

// LinkTarget names an outbound link of the selected place.
type LinkTarget int

const (
	// LinkInstagram opens the place's Instagram link.
	LinkInstagram LinkTarget = iota + 1
	// LinkTikTok opens the place's TikTok link.
	LinkTikTok
	// LinkMaps opens the place in Google Maps.
	LinkMaps
)

var linkTargets = map[string]LinkTarget{
	"instagram": LinkInstagram,
	"tiktok":    LinkTikTok,
	"maps":      LinkMaps,
}

// ParseLinkTarget maps "instagram", "tiktok" or "maps" to a LinkTarget.
func ParseLinkTarget(s string) (LinkTarget, error) {
	if t, ok := linkTargets[s]; ok {
		return t, nil
	}
	return 0, eris.Errorf("session: unknown link target %q", s)
}

func (t LinkTarget) String() string {
	switch t {
	case LinkInstagram:
		return "instagram"
	case LinkTikTok:
		return "tiktok"
	case LinkMaps:
		return "maps"
	default:
		return "unknown"
	}
}

// Title is the alert title used when opening the link fails.
func (t LinkTarget) Title() string {
	switch t {
	case LinkInstagram:
		return "Instagram"
	case LinkTikTok:
		return "TikTok"
	case LinkMaps:
		return "Google Maps"
	default:
		return "Link"
	}
}

// URL returns the link for p, or "" when p has none.
func (t LinkTarget) URL(p *model.Place) string {
	if p == nil {
		return ""
	}
	switch t {
	case LinkInstagram:
		if p.HasInstagram() {
			return p.InstagramURL
		}
	case LinkTikTok:
		if p.HasTikTok() {
			return p.TikTokURL
		}
	case LinkMaps:
		return p.GoogleMapsURL()
	}
	return ""
}

// OpenLink opens target for the selected place. Nothing happens when no
// place is selected or it has no such link. A failure is alerted to the
// user and returned as a *LinkOpenError.
func (s *Session) OpenLink(ctx context.Context, target LinkTarget) error {
	url := target.URL(s.store.Selected())
	if url == "" {
		return nil
	}

	if err := s.opener.Open(ctx, url); err != nil {
		zap.L().Info("session: open link failed",
			zap.String("target", target.String()),
			zap.Error(err),
		)
		s.notifier.Alert(target.Title(), "Could not open link.\n"+err.Error())
		return &LinkOpenError{Target: target, URL: url, Err: err}
	}
	return nil
}
