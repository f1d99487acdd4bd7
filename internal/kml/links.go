package kml

import (
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`<.*?>`)
	instagramPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/[^\s"'<>]+`)
	tiktokPattern    = regexp.MustCompile(`(?i)https?://(?:www\.)?tiktok\.com/[^\s"'<>]+`)
	spacePattern     = regexp.MustCompile(`\s{2,}`)
)

// trailingPunctuation is sentence punctuation that ends a link in prose.
const trailingPunctuation = ".,;:!?"

// Links is the result of scanning a placemark description.
type Links struct {
	CleanDescription string
	InstagramURL     string
	TikTokURL        string
}

// ExtractLinks strips markup from raw, pulls out the first Instagram and
// TikTok URL, and returns the remaining text with whitespace collapsed.
//
// This is a text heuristic, not an HTML parser. Only the first link per
// platform is kept, and links that do not match the platform URL shape
// (shortened links, for example) are left in the text.
func ExtractLinks(raw string) Links {
	if strings.TrimSpace(raw) == "" {
		return Links{}
	}

	text := tagPattern.ReplaceAllString(raw, "")

	links := Links{
		InstagramURL: firstLink(instagramPattern, raw),
		TikTokURL:    firstLink(tiktokPattern, raw),
	}

	for _, link := range []string{links.InstagramURL, links.TikTokURL} {
		if link == "" {
			continue
		}
		text = removeFold(text, link)
	}

	links.CleanDescription = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	return links
}

func firstLink(re *regexp.Regexp, raw string) string {
	return strings.TrimRight(re.FindString(raw), trailingPunctuation)
}

// removeFold deletes every case-insensitive occurrence of s from text.
func removeFold(text, s string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s))
	return re.ReplaceAllLiteralString(text, "")
}
