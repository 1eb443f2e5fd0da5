// channels.go — live TV channel listing from the public iptv-org API.
//
// Fetches the channel and stream indexes from iptv-org.github.io, joins them
// on channel ID, and keeps only channels with a playable stream URL. The
// result is capped at 100 channels for client performance, and a small
// static fallback set is served when the upstream is unreachable so the live
// TV rail never renders empty.
package livetv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const iptvAPIBase = "https://iptv-org.github.io/api"

// maxChannels caps the channel list returned to clients.
const maxChannels = 100

// Channel is one live TV channel with a playable stream.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Logo     string `json:"logo"`
	Category string `json:"category"`
	Country  string `json:"country"`
	Language string `json:"language"`
	URL      string `json:"url"`
}

// Category groups channels under a display name.
type Category struct {
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// iptvChannel mirrors the iptv-org channels.json entry.
type iptvChannel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Country    string   `json:"country"`
	Languages  []string `json:"languages"`
	Categories []string `json:"categories"`
	Logo       string   `json:"logo"`
	IsNSFW     bool     `json:"is_nsfw"`
}

// iptvStream mirrors the iptv-org streams.json entry.
type iptvStream struct {
	Channel string `json:"channel"`
	URL     string `json:"url"`
}

// Lister fetches and caches the joined channel list.
// The upstream indexes are multi-megabyte JSON files that change rarely, so
// results are cached for cacheTTL and refreshed on demand.
type Lister struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	cached    []Channel
	fetchedAt time.Time
}

const cacheTTL = 15 * time.Minute

// NewLister creates a channel Lister against the public iptv-org API.
func NewLister() *Lister {
	return &Lister{
		baseURL:    iptvAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Channels returns up to maxChannels playable channels.
// Serves the cache when fresh; falls back to a static channel set when the
// upstream fetch fails and no cache exists.
func (l *Lister) Channels(ctx context.Context) ([]Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && time.Since(l.fetchedAt) < cacheTTL {
		return l.cached, nil
	}

	channels, err := l.fetchChannels(ctx)
	if err != nil {
		if l.cached != nil {
			// Stale cache beats a fallback list.
			return l.cached, nil
		}
		return fallbackChannels(), nil
	}

	l.cached = channels
	l.fetchedAt = time.Now()
	return channels, nil
}

// Categories returns channels grouped by category, sorted by category name.
func (l *Lister) Categories(ctx context.Context) ([]Category, error) {
	channels, err := l.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return groupByCategory(channels), nil
}

// fetchChannels downloads and joins the channel and stream indexes.
func (l *Lister) fetchChannels(ctx context.Context) ([]Channel, error) {
	var meta []iptvChannel
	if err := l.getJSON(ctx, "/channels.json", &meta); err != nil {
		return nil, err
	}
	var streams []iptvStream
	if err := l.getJSON(ctx, "/streams.json", &streams); err != nil {
		return nil, err
	}

	// First stream per channel wins.
	streamByChannel := make(map[string]string, len(streams))
	for _, s := range streams {
		if s.Channel == "" || strings.TrimSpace(s.URL) == "" {
			continue
		}
		if _, ok := streamByChannel[s.Channel]; !ok {
			streamByChannel[s.Channel] = s.URL
		}
	}

	channels := make([]Channel, 0, maxChannels)
	for _, c := range meta {
		if c.IsNSFW || c.Name == "" {
			continue
		}
		streamURL, ok := streamByChannel[c.ID]
		if !ok {
			continue
		}

		ch := Channel{
			ID:       c.ID,
			Name:     c.Name,
			Logo:     c.Logo,
			Category: "General",
			Country:  orUnknown(c.Country),
			Language: "Unknown",
			URL:      streamURL,
		}
		if len(c.Categories) > 0 {
			ch.Category = titleCase(c.Categories[0])
		}
		if len(c.Languages) > 0 {
			ch.Language = c.Languages[0]
		}

		channels = append(channels, ch)
		if len(channels) >= maxChannels {
			break
		}
	}
	return channels, nil
}

func (l *Lister) getJSON(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("livetv: build request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("livetv: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("livetv: HTTP %d for %s", resp.StatusCode, path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("livetv: read %s: %w", path, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("livetv: decode %s: %w", path, err)
	}
	return nil
}

// groupByCategory buckets channels by category name.
func groupByCategory(channels []Channel) []Category {
	buckets := make(map[string][]Channel)
	for _, ch := range channels {
		name := ch.Category
		if name == "" {
			name = "General"
		}
		buckets[name] = append(buckets[name], ch)
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, Category{Name: name, Channels: buckets[name]})
	}
	return categories
}

// fallbackChannels is the static set served when iptv-org is unreachable.
// All entries are public, freely redistributable streams.
func fallbackChannels() []Channel {
	return []Channel{
		{
			ID:       "NASATV.us",
			Name:     "NASA TV",
			Logo:     "https://upload.wikimedia.org/wikipedia/commons/thumb/e/e5/NASA_logo.svg/200px-NASA_logo.svg.png",
			Category: "Science",
			Country:  "US",
			Language: "eng",
			URL:      "https://ntv1.akamaized.net/hls/live/2014075/NASA-NTV1-HLS/master.m3u8",
		},
		{
			ID:       "RedBullTV.at",
			Name:     "Red Bull TV",
			Logo:     "https://i.imgur.com/7NeBmWv.jpg",
			Category: "Sports",
			Country:  "AT",
			Language: "eng",
			URL:      "https://rbmn-live.akamaized.net/hls/live/590964/BoRB-AT/master.m3u8",
		},
		{
			ID:       "DWEnglish.de",
			Name:     "DW English",
			Logo:     "https://i.imgur.com/A1xzjOI.png",
			Category: "News",
			Country:  "DE",
			Language: "eng",
			URL:      "https://dwamdstream102.akamaized.net/hls/live/2015525/dwstream102/index.m3u8",
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// titleCase capitalizes the first letter of a category slug ("news" -> "News").
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
