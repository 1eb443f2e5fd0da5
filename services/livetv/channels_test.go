package livetv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeIPTVServer serves canned channels.json and streams.json indexes.
func fakeIPTVServer(t *testing.T, channels []iptvChannel, streams []iptvStream) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels.json":
			json.NewEncoder(w).Encode(channels)
		case "/streams.json":
			json.NewEncoder(w).Encode(streams)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testLister(baseURL string) *Lister {
	return &Lister{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestChannels_JoinsStreamsAndFilters(t *testing.T) {
	srv := fakeIPTVServer(t,
		[]iptvChannel{
			{ID: "News1.us", Name: "News One", Country: "US", Categories: []string{"news"}, Languages: []string{"eng"}},
			{ID: "NoStream.us", Name: "No Stream"},
			{ID: "Adult.us", Name: "After Dark", IsNSFW: true},
			{ID: "Nameless.us", Name: ""},
		},
		[]iptvStream{
			{Channel: "News1.us", URL: "https://news1.test/master.m3u8"},
			{Channel: "News1.us", URL: "https://news1-backup.test/master.m3u8"},
			{Channel: "Adult.us", URL: "https://adult.test/master.m3u8"},
			{Channel: "Nameless.us", URL: "https://nameless.test/master.m3u8"},
			{Channel: "", URL: "https://orphan.test/master.m3u8"},
		},
	)
	defer srv.Close()

	channels, err := testLister(srv.URL).Channels(t.Context())
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 channel after filtering, got %d", len(channels))
	}

	ch := channels[0]
	if ch.ID != "News1.us" || ch.Name != "News One" {
		t.Errorf("unexpected channel %+v", ch)
	}
	// First stream per channel wins.
	if ch.URL != "https://news1.test/master.m3u8" {
		t.Errorf("URL = %q, want the first stream", ch.URL)
	}
	if ch.Category != "News" {
		t.Errorf("Category = %q, want News (title-cased)", ch.Category)
	}
	if ch.Language != "eng" {
		t.Errorf("Language = %q", ch.Language)
	}
}

func TestChannels_CachesAcrossCalls(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/channels.json" {
			hits++
		}
		switch r.URL.Path {
		case "/channels.json":
			json.NewEncoder(w).Encode([]iptvChannel{{ID: "C.us", Name: "C"}})
		case "/streams.json":
			json.NewEncoder(w).Encode([]iptvStream{{Channel: "C.us", URL: "https://c.test/m.m3u8"}})
		}
	}))
	defer srv.Close()

	l := testLister(srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := l.Channels(t.Context()); err != nil {
			t.Fatalf("Channels: %v", err)
		}
	}
	if hits != 1 {
		t.Errorf("upstream fetched %d times, want 1 (cached)", hits)
	}
}

func TestChannels_StaleCacheBeatsOutage(t *testing.T) {
	srv := fakeIPTVServer(t,
		[]iptvChannel{{ID: "C.us", Name: "C"}},
		[]iptvStream{{Channel: "C.us", URL: "https://c.test/m.m3u8"}},
	)

	l := testLister(srv.URL)
	if _, err := l.Channels(t.Context()); err != nil {
		t.Fatalf("Channels: %v", err)
	}

	// Upstream goes away and the cache expires.
	srv.Close()
	l.fetchedAt = time.Now().Add(-time.Hour)

	channels, err := l.Channels(t.Context())
	if err != nil {
		t.Fatalf("Channels with stale cache: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != "C.us" {
		t.Errorf("expected the stale cached list, got %+v", channels)
	}
}

func TestChannels_FallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // nothing listening

	channels, err := testLister(srv.URL).Channels(t.Context())
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) == 0 {
		t.Fatal("fallback list must not be empty")
	}
	for _, ch := range channels {
		if ch.Name == "" || ch.URL == "" {
			t.Errorf("fallback channel missing name or stream: %+v", ch)
		}
	}
}

func TestChannels_CapsAtMax(t *testing.T) {
	var meta []iptvChannel
	var streams []iptvStream
	for i := 0; i < maxChannels+50; i++ {
		id := fmt.Sprintf("Ch%03d.us", i)
		meta = append(meta, iptvChannel{ID: id, Name: "Channel " + id})
		streams = append(streams, iptvStream{Channel: id, URL: "https://s.test/" + id})
	}
	srv := fakeIPTVServer(t, meta, streams)
	defer srv.Close()

	channels, err := testLister(srv.URL).Channels(t.Context())
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) != maxChannels {
		t.Errorf("expected cap at %d channels, got %d", maxChannels, len(channels))
	}
}

func TestGroupByCategory(t *testing.T) {
	channels := []Channel{
		{ID: "a", Category: "Sports"},
		{ID: "b", Category: "News"},
		{ID: "c", Category: "News"},
		{ID: "d", Category: ""},
	}
	cats := groupByCategory(channels)
	if len(cats) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(cats))
	}
	// Sorted by name: General, News, Sports.
	if cats[0].Name != "General" || cats[1].Name != "News" || cats[2].Name != "Sports" {
		t.Errorf("unexpected category order: %s, %s, %s", cats[0].Name, cats[1].Name, cats[2].Name)
	}
	if len(cats[1].Channels) != 2 {
		t.Errorf("News should hold 2 channels, got %d", len(cats[1].Channels))
	}
}
