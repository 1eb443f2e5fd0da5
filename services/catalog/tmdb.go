// tmdb.go — TMDB (The Movie Database) client for the catalog service.
//
// Required env var: TMDB_API_KEY — obtain from https://www.themoviedb.org/settings/api
//
// Rate limit: TMDB allows 50 requests/second on free tier. A circuit breaker
// trips after consecutive upstream failures so a TMDB outage degrades to fast
// 503s instead of 10-second timeouts per request.
//
// Privacy: Movie/show IDs are public catalog data. No personal data is sent.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"
const tmdbImageBase = "https://image.tmdb.org/t/p/w500"
const tmdbBackdropBase = "https://image.tmdb.org/t/p/w1280"

// Movie contains the metadata fields Flixsy surfaces for a movie.
type Movie struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int     `json:"vote_count"`
	GenreIDs     []int   `json:"genre_ids,omitempty"`
	Genres       []Genre `json:"genres,omitempty"`
	Runtime      int     `json:"runtime,omitempty"` // minutes, detail responses only
}

// Show contains metadata for a TV show.
type Show struct {
	ID               int     `json:"id"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	FirstAirDate     string  `json:"first_air_date"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	GenreIDs         []int   `json:"genre_ids,omitempty"`
	Genres           []Genre `json:"genres,omitempty"`
	NumberOfSeasons  int     `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes int     `json:"number_of_episodes,omitempty"`
}

// Genre is a TMDB genre entry.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PosterURL returns the full URL for the movie poster at w500 size.
func (m *Movie) PosterURL() string {
	if m.PosterPath == "" {
		return ""
	}
	return tmdbImageBase + m.PosterPath
}

// BackdropURL returns the full URL for the movie backdrop at w1280 size.
func (m *Movie) BackdropURL() string {
	if m.BackdropPath == "" {
		return ""
	}
	return tmdbBackdropBase + m.BackdropPath
}

// PosterURL returns the full URL for the show poster at w500 size.
func (s *Show) PosterURL() string {
	if s.PosterPath == "" {
		return ""
	}
	return tmdbImageBase + s.PosterPath
}

// TMDBClient is a minimal TMDB API client. Create with NewTMDBClient.
type TMDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewTMDBClient creates a TMDB client with the given API key.
// Returns an error if the key is empty.
func NewTMDBClient(apiKey string) (*TMDBClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tmdb: TMDB_API_KEY is not set")
	}
	return &TMDBClient{
		apiKey:  apiKey,
		baseURL: tmdbBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "tmdb",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}, nil
}

// listResponse is TMDB's paged list envelope.
type listResponse[T any] struct {
	Page         int `json:"page"`
	Results      []T `json:"results"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

// TrendingMovies returns this week's trending movies.
func (c *TMDBClient) TrendingMovies(ctx context.Context) ([]Movie, error) {
	return c.movieList(ctx, "/trending/movie/week", nil)
}

// PopularMovies returns the current popular movies.
func (c *TMDBClient) PopularMovies(ctx context.Context) ([]Movie, error) {
	return c.movieList(ctx, "/movie/popular", nil)
}

// TopRatedMovies returns the all-time top rated movies.
func (c *TMDBClient) TopRatedMovies(ctx context.Context) ([]Movie, error) {
	return c.movieList(ctx, "/movie/top_rated", nil)
}

// UpcomingMovies returns movies releasing soon.
func (c *TMDBClient) UpcomingMovies(ctx context.Context) ([]Movie, error) {
	return c.movieList(ctx, "/movie/upcoming", nil)
}

// MoviesByGenre returns movies discovered by TMDB genre ID.
func (c *TMDBClient) MoviesByGenre(ctx context.Context, genreID int) ([]Movie, error) {
	q := url.Values{}
	q.Set("with_genres", strconv.Itoa(genreID))
	return c.movieList(ctx, "/discover/movie", q)
}

// SearchMovies searches movies by title.
func (c *TMDBClient) SearchMovies(ctx context.Context, query string) ([]Movie, error) {
	q := url.Values{}
	q.Set("query", query)
	return c.movieList(ctx, "/search/movie", q)
}

// MovieDetails fetches full movie details by TMDB movie ID.
func (c *TMDBClient) MovieDetails(ctx context.Context, tmdbID int) (*Movie, error) {
	var movie Movie
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", tmdbID), nil, &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// MovieGenres returns the TMDB movie genre list.
func (c *TMDBClient) MovieGenres(ctx context.Context) ([]Genre, error) {
	var result struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/movie/list", nil, &result); err != nil {
		return nil, err
	}
	return result.Genres, nil
}

// TrendingShows returns this week's trending TV shows.
func (c *TMDBClient) TrendingShows(ctx context.Context) ([]Show, error) {
	return c.showList(ctx, "/trending/tv/week", nil)
}

// PopularShows returns the current popular TV shows.
func (c *TMDBClient) PopularShows(ctx context.Context) ([]Show, error) {
	return c.showList(ctx, "/tv/popular", nil)
}

// TopRatedShows returns the all-time top rated TV shows.
func (c *TMDBClient) TopRatedShows(ctx context.Context) ([]Show, error) {
	return c.showList(ctx, "/tv/top_rated", nil)
}

// AiringTodayShows returns shows airing today.
func (c *TMDBClient) AiringTodayShows(ctx context.Context) ([]Show, error) {
	return c.showList(ctx, "/tv/airing_today", nil)
}

// SearchShows searches TV shows by name.
func (c *TMDBClient) SearchShows(ctx context.Context, query string) ([]Show, error) {
	q := url.Values{}
	q.Set("query", query)
	return c.showList(ctx, "/search/tv", q)
}

// ShowDetails fetches full TV show details by TMDB show ID.
func (c *TMDBClient) ShowDetails(ctx context.Context, tmdbID int) (*Show, error) {
	var show Show
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", tmdbID), nil, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

func (c *TMDBClient) movieList(ctx context.Context, path string, q url.Values) ([]Movie, error) {
	var result listResponse[Movie]
	if err := c.get(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

func (c *TMDBClient) showList(ctx context.Context, path string, q url.Values) ([]Show, error) {
	var result listResponse[Show]
	if err := c.get(ctx, path, q, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// get performs a GET request to the TMDB API through the circuit breaker and
// decodes the JSON response.
func (c *TMDBClient) get(ctx context.Context, path string, q url.Values, dst interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, reqURL, path)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	return nil
}

func (c *TMDBClient) fetch(ctx context.Context, reqURL, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("tmdb: invalid API key — check TMDB_API_KEY")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("tmdb: rate limited — slow down requests")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb: HTTP %d for %s", resp.StatusCode, path)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tmdb: read response: %w", err)
	}
	return buf, nil
}
