package livetv

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="NASATV.us" tvg-logo="https://img.test/nasa.png" group-title="Science",NASA TV
https://ntv1.example.net/hls/master.m3u8
#EXTINF:-1 tvg-id="DWEnglish.de" group-title="News",DW English
https://dw.example.net/hls/index.m3u8
#EXTVLCOPT:http-user-agent=Mozilla/5.0
#EXTINF:-1,Bare Channel
https://bare.example.net/stream.m3u8
`

func TestParseM3UBody(t *testing.T) {
	entries, err := parseM3UBody(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatalf("parseM3UBody: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Name != "NASA TV" {
		t.Errorf("Name = %q, want NASA TV", first.Name)
	}
	if first.TvgID != "NASATV.us" {
		t.Errorf("TvgID = %q", first.TvgID)
	}
	if first.LogoURL != "https://img.test/nasa.png" {
		t.Errorf("LogoURL = %q", first.LogoURL)
	}
	if first.GroupTitle != "Science" {
		t.Errorf("GroupTitle = %q", first.GroupTitle)
	}
	if first.StreamURL != "https://ntv1.example.net/hls/master.m3u8" {
		t.Errorf("StreamURL = %q", first.StreamURL)
	}

	if entries[2].Name != "Bare Channel" || entries[2].GroupTitle != "" {
		t.Errorf("unexpected minimal entry %+v", entries[2])
	}
}

func TestParseM3UBody_Edges(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"empty playlist", "#EXTM3U\n", 0, false},
		{"missing header", "#EXTINF:-1,Ch\nhttps://x.test/s.m3u8\n", 0, true},
		{"html error page", "<!DOCTYPE html><html></html>", 0, true},
		{"blank lines skipped", "#EXTM3U\n\n\n#EXTINF:-1,Ch\n\nhttps://x.test/s.m3u8\n", 1, false},
		{"non-http url dropped", "#EXTM3U\n#EXTINF:-1,Ch\nrtmp://x.test/live\n", 0, false},
		{"directive resets pending", "#EXTM3U\n#EXTINF:-1,Ch\n#EXTGRP:News\nhttps://x.test/s.m3u8\n", 1, false},
		{"url without extinf", "#EXTM3U\nhttps://x.test/s.m3u8\n", 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := parseM3UBody(strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseM3UBody: %v", err)
			}
			if len(entries) != tc.want {
				t.Errorf("got %d entries, want %d", len(entries), tc.want)
			}
		})
	}
}

func TestParseM3UBody_URLOnlyEntryNamedAfterURL(t *testing.T) {
	entries, err := parseM3UBody(strings.NewReader("#EXTM3U\nhttps://x.test/s.m3u8\n"))
	if err != nil {
		t.Fatalf("parseM3UBody: %v", err)
	}
	if entries[0].Name != "https://x.test/s.m3u8" {
		t.Errorf("Name = %q, want the URL", entries[0].Name)
	}
}

func TestParseExtinf_UnquotedAttrs(t *testing.T) {
	e := parseExtinf(`#EXTINF:-1 tvg-id=abc.us group-title="Kids TV",Cartoons`)
	if e.TvgID != "abc.us" {
		t.Errorf("TvgID = %q", e.TvgID)
	}
	if e.GroupTitle != "Kids TV" {
		t.Errorf("GroupTitle = %q", e.GroupTitle)
	}
	if e.Name != "Cartoons" {
		t.Errorf("Name = %q", e.Name)
	}
}

func TestParseM3U_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePlaylist))
	}))
	defer srv.Close()

	entries, err := ParseM3U(t.Context(), srv.URL)
	if err != nil {
		t.Fatalf("ParseM3U: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestParseM3U_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := ParseM3U(t.Context(), srv.URL); err == nil {
		t.Error("expected error on HTTP 404")
	}
}
