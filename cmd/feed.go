package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mapinfo/internal/fetcher"
	"github.com/sells-group/mapinfo/internal/kml"
	"github.com/sells-group/mapinfo/internal/model"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Work with KML place feeds",
}

var (
	inspectURL    string
	inspectFile   string
	inspectFormat string
)

var feedInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Parse a feed and print its places",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("inspect"); err != nil {
			return err
		}
		src := inspectSource{file: inspectFile, url: inspectURL}
		if src.file == "" && src.url == "" {
			src.url = cfg.Feed.ResolveURL()
		}
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Feed.UserAgent,
			Timeout:   cfg.Feed.Timeout(),
		})
		return inspectFeed(cmd.Context(), cmd.OutOrStdout(), f, src, inspectFormat)
	},
}

func init() {
	feedInspectCmd.Flags().StringVar(&inspectURL, "url", "", "feed URL (default from config)")
	feedInspectCmd.Flags().StringVar(&inspectFile, "file", "", "local KML file")
	feedInspectCmd.Flags().StringVar(&inspectFormat, "format", "json", "output format: json, yaml or dump")
	feedCmd.AddCommand(feedInspectCmd)
	rootCmd.AddCommand(feedCmd)
}

type inspectSource struct {
	file string
	url  string
}

func (s inspectSource) String() string {
	if s.file != "" {
		return s.file
	}
	return s.url
}

func (s inspectSource) open(ctx context.Context, f fetcher.Fetcher) (io.ReadCloser, error) {
	switch {
	case s.file != "":
		r, err := os.Open(s.file)
		if err != nil {
			return nil, eris.Wrap(err, "feed: open file")
		}
		return r, nil
	case s.url != "":
		return f.Download(ctx, s.url)
	default:
		return nil, eris.New("feed: no --file, --url or configured feed")
	}
}

// feedReport is the printed result of an inspect.
type feedReport struct {
	Source string         `json:"source" yaml:"source"`
	Stats  kml.Stats      `json:"stats" yaml:"stats"`
	Places []*model.Place `json:"places" yaml:"places"`
}

func inspectFeed(ctx context.Context, w io.Writer, f fetcher.Fetcher, src inspectSource, format string) error {
	switch format {
	case "json", "yaml", "dump":
	default:
		return eris.Errorf("feed: unknown format %q", format)
	}

	body, err := src.open(ctx, f)
	if err != nil {
		return err
	}
	defer body.Close() //nolint:errcheck

	places, stats, err := kml.Parse(ctx, body)
	if err != nil {
		return err
	}
	if places == nil {
		places = []*model.Place{}
	}
	report := feedReport{Source: src.String(), Stats: stats, Places: places}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "feed: encode yaml")
		}
		return enc.Close()
	case "dump":
		dump := litter.Options{HidePrivateFields: true, StripPackageNames: true}
		_, err := io.WriteString(w, dump.Sdump(report)+"\n")
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
}
