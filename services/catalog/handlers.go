// handlers.go — HTTP surface of the catalog service.
//
// A read-only proxy over TMDB: no database, no entitlement logic. Playback
// gating happens in front of the player, not here — browsing is free.
package catalog

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/flixsy/flixsy-server/pkg/logging"
)

// Server holds the catalog service dependencies.
type Server struct {
	tmdb *TMDBClient // may be nil if TMDB_API_KEY is not configured
	log  *logrus.Entry
}

// NewServer creates the catalog server. tmdb may be nil; all catalog
// endpoints then return 503.
func NewServer(tmdb *TMDBClient) *Server {
	return &Server{tmdb: tmdb, log: logging.NewLogger("catalog")}
}

// RegisterRoutes registers all catalog routes on the given mux.
// Catalog browsing requires no authentication.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/catalog/movies/", s.handleMovies)
	mux.HandleFunc("/catalog/tv/", s.handleShows)
	mux.HandleFunc("/catalog/genres", s.handleGenres)
	mux.HandleFunc("/catalog/search", s.handleSearch)
}

// handleMovies routes /catalog/movies/{trending|popular|top_rated|upcoming|genre/{id}|{id}}.
func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	if s.tmdbRequired(w) || s.getRequired(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/catalog/movies/")
	switch {
	case rest == "trending":
		s.respondList(w, r, func() (any, error) { return s.tmdb.TrendingMovies(r.Context()) })
	case rest == "popular":
		s.respondList(w, r, func() (any, error) { return s.tmdb.PopularMovies(r.Context()) })
	case rest == "top_rated":
		s.respondList(w, r, func() (any, error) { return s.tmdb.TopRatedMovies(r.Context()) })
	case rest == "upcoming":
		s.respondList(w, r, func() (any, error) { return s.tmdb.UpcomingMovies(r.Context()) })
	case strings.HasPrefix(rest, "genre/"):
		genreID, err := strconv.Atoi(strings.TrimPrefix(rest, "genre/"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_genre", "genre ID must be numeric")
			return
		}
		s.respondList(w, r, func() (any, error) { return s.tmdb.MoviesByGenre(r.Context(), genreID) })
	default:
		movieID, err := strconv.Atoi(rest)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "unknown catalog path")
			return
		}
		s.respondList(w, r, func() (any, error) { return s.tmdb.MovieDetails(r.Context(), movieID) })
	}
}

// handleShows routes /catalog/tv/{trending|popular|top_rated|airing_today|{id}}.
func (s *Server) handleShows(w http.ResponseWriter, r *http.Request) {
	if s.tmdbRequired(w) || s.getRequired(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/catalog/tv/")
	switch rest {
	case "trending":
		s.respondList(w, r, func() (any, error) { return s.tmdb.TrendingShows(r.Context()) })
	case "popular":
		s.respondList(w, r, func() (any, error) { return s.tmdb.PopularShows(r.Context()) })
	case "top_rated":
		s.respondList(w, r, func() (any, error) { return s.tmdb.TopRatedShows(r.Context()) })
	case "airing_today":
		s.respondList(w, r, func() (any, error) { return s.tmdb.AiringTodayShows(r.Context()) })
	default:
		showID, err := strconv.Atoi(rest)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "unknown catalog path")
			return
		}
		s.respondList(w, r, func() (any, error) { return s.tmdb.ShowDetails(r.Context(), showID) })
	}
}

// handleGenres returns the TMDB movie genre list.
// GET /catalog/genres
func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	if s.tmdbRequired(w) || s.getRequired(w, r) {
		return
	}
	s.respondList(w, r, func() (any, error) { return s.tmdb.MovieGenres(r.Context()) })
}

// searchResponse combines movie and TV results for a single query.
type searchResponse struct {
	Movies []Movie `json:"movies"`
	Shows  []Show  `json:"shows"`
}

// handleSearch searches movies and TV shows in one call.
// GET /catalog/search?q=...
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.tmdbRequired(w) || s.getRequired(w, r) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q parameter is required")
		return
	}

	movies, err := s.tmdb.SearchMovies(r.Context(), query)
	if err != nil {
		s.upstreamFault(w, err)
		return
	}
	shows, err := s.tmdb.SearchShows(r.Context(), query)
	if err != nil {
		s.upstreamFault(w, err)
		return
	}
	if movies == nil {
		movies = []Movie{}
	}
	if shows == nil {
		shows = []Show{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Movies: movies, Shows: shows})
}

// respondList runs a TMDB fetch and writes the result or a 503.
func (s *Server) respondList(w http.ResponseWriter, r *http.Request, fetch func() (any, error)) {
	result, err := fetch()
	if err != nil {
		s.upstreamFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) upstreamFault(w http.ResponseWriter, err error) {
	s.log.WithError(err).Warn("tmdb fetch failed")
	writeError(w, http.StatusServiceUnavailable, "catalog_unavailable",
		"catalog upstream unavailable, please try again")
}

// tmdbRequired returns 503 if the TMDB client is not configured.
func (s *Server) tmdbRequired(w http.ResponseWriter) bool {
	if s.tmdb == nil {
		writeError(w, http.StatusServiceUnavailable, "tmdb_not_configured",
			"Catalog is not configured. Set TMDB_API_KEY to enable browsing.")
		return true
	}
	return false
}

func (s *Server) getRequired(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "GET required")
		return true
	}
	return false
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
