// Package geocode resolves free text to coordinates and back through
// OpenStreetMap Nominatim.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
	"github.com/MrSnakeDoc/mapmarks/internal/utils"
	"golang.org/x/time/rate"
)

const (
	// UnknownLocation is shown when reverse geocoding yields nothing usable.
	UnknownLocation = "Unknown location"

	// MinSuggestLength is the shortest input that produces suggestions.
	MinSuggestLength = 3

	// addressParts is how many comma-separated parts of a display name are kept.
	addressParts = 3
)

// ErrNoResults is returned when a search matched nothing.
var ErrNoResults = errors.New("no results")

// Place is one geocoding result.
type Place struct {
	Name     string          `json:"name"`
	Location domain.Location `json:"location"`
}

type Client struct {
	baseURL string
	agent   string
	http    *http.Client
	limiter *rate.Limiter
	log     logger.Logger
}

type Options struct {
	BaseURL   string        // ex: https://nominatim.openstreetmap.org
	UserAgent string        // required by the Nominatim usage policy
	RPS       float64       // outbound requests per second, Nominatim allows 1
	Timeout   time.Duration // per request
	Client    *http.Client
	Logger    logger.Logger
}

func New(opts Options) *Client {
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		agent:   opts.UserAgent,
		http:    opts.Client,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
		log:     opts.Logger,
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (r searchResult) place() (Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid lat %q", r.Lat)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid lon %q", r.Lon)
	}
	return Place{Name: r.DisplayName, Location: domain.Location{Latitude: lat, Longitude: lng}}, nil
}

// Search returns the best match for q.
func (c *Client) Search(ctx context.Context, q string) (*Place, error) {
	places, err := c.search(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}
	return &places[0], nil
}

// Suggest returns up to limit candidates for autocomplete. Inputs shorter
// than MinSuggestLength runes yield no suggestions and no request.
func (c *Client) Suggest(ctx context.Context, q string, limit int) ([]Place, error) {
	if len([]rune(strings.TrimSpace(q))) < MinSuggestLength {
		return []Place{}, nil
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}
	return c.search(ctx, q, limit)
}

func (c *Client) search(ctx context.Context, q string, limit int) ([]Place, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.New(apperr.KindValidation, "Search text is required.")
	}
	params := url.Values{
		"format": {"json"},
		"q":      {q},
		"limit":  {strconv.Itoa(limit)},
	}
	var results []searchResult
	if err := c.get(ctx, "search", params, &results); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		p, err := r.place()
		if err != nil {
			c.log.Debug("skipping malformed geocoding result", logger.Error(err))
			continue
		}
		places = append(places, p)
	}
	return places, nil
}

// Reverse returns a short human address for loc. On any failure it returns
// UnknownLocation together with the error so callers can choose to ignore it.
func (c *Client) Reverse(ctx context.Context, loc domain.Location) (string, error) {
	params := url.Values{
		"format":         {"json"},
		"lat":            {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}
	var result struct {
		DisplayName string `json:"display_name"`
		Error       string `json:"error"`
	}
	if err := c.get(ctx, "reverse", params, &result); err != nil {
		return UnknownLocation, err
	}
	if result.Error != "" {
		return UnknownLocation, fmt.Errorf("reverse geocoding: %s", result.Error)
	}
	return FormatAddress(result.DisplayName), nil
}

func (c *Client) get(ctx context.Context, op string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream("nominatim", op, start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.KindBackend, "Geocoding is busy, try again.", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+op+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("User-Agent", c.agent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindBackend, "Geocoding service unavailable.", err)
	}
	defer utils.DrainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperr.Wrap(apperr.KindBackend, "Geocoding service unavailable.",
			fmt.Errorf("nominatim %s returned %d", op, resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindBackend, "Geocoding service unavailable.", fmt.Errorf("decode %s: %w", op, err))
	}
	return nil
}

var spaces = regexp.MustCompile(`\s+`)

// FormatAddress keeps the first three comma-separated parts of a Nominatim
// display name with whitespace collapsed, e.g.
// "12, Calle Larga, Centro, Málaga, Andalucía, España" -> "12, Calle Larga, Centro".
func FormatAddress(displayName string) string {
	parts := strings.Split(displayName, ",")
	kept := make([]string, 0, addressParts)
	for _, p := range parts {
		p = strings.TrimSpace(spaces.ReplaceAllString(p, " "))
		if p == "" {
			continue
		}
		kept = append(kept, p)
		if len(kept) == addressParts {
			break
		}
	}
	if len(kept) == 0 {
		return UnknownLocation
	}
	return strings.Join(kept, ", ")
}
