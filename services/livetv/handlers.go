// handlers.go — HTTP surface of the live TV service.
package livetv

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/flixsy/flixsy-server/pkg/logging"
)

// Server holds the live TV service dependencies.
type Server struct {
	lister *Lister
	log    *logrus.Entry
}

// NewServer creates the live TV server.
func NewServer(lister *Lister) *Server {
	return &Server{lister: lister, log: logging.NewLogger("livetv")}
}

// RegisterRoutes registers all live TV routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// GET /livetv/channels   — flat channel list (≤100 playable channels)
	// GET /livetv/categories — channels grouped by category
	// GET /livetv/playlist?url=... — parse a user-supplied M3U playlist
	mux.HandleFunc("/livetv/channels", s.handleChannels)
	mux.HandleFunc("/livetv/categories", s.handleCategories)
	mux.HandleFunc("/livetv/playlist", s.handlePlaylist)
}

// handleChannels returns the playable channel list.
// GET /livetv/channels
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	channels, err := s.lister.Channels(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("channel list failed")
		writeError(w, http.StatusServiceUnavailable, "livetv_unavailable", "channel list unavailable")
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// handleCategories returns channels grouped by category.
// GET /livetv/categories
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}
	categories, err := s.lister.Categories(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("category list failed")
		writeError(w, http.StatusServiceUnavailable, "livetv_unavailable", "channel list unavailable")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// handlePlaylist parses a user-supplied M3U playlist URL.
// GET /livetv/playlist?url=https%3A%2F%2F...
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_url", "url parameter is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "invalid_url", "url must be an http(s) URL")
		return
	}

	entries, err := ParseM3U(r.Context(), raw)
	if err != nil {
		s.log.WithError(err).WithField("url", raw).Warn("playlist parse failed")
		writeError(w, http.StatusBadGateway, "playlist_unavailable", "could not fetch or parse playlist")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
