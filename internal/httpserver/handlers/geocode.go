package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/apperr"
	"github.com/MrSnakeDoc/mapmarks/internal/domain"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
)

const (
	geocodeTimeout = 10 * time.Second
	defaultSuggest = 5
	maxSuggest     = 10
)

func GeocodeSearch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, r, d.Logger, apperr.Validation(map[string]string{"q": "Search text is required."}))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), geocodeTimeout)
		defer cancel()

		place, err := d.Geocoder.Search(ctx, q)
		if errors.Is(err, geocode.ErrNoResults) {
			err = apperr.Wrap(apperr.KindNotFound, "No place matches that search.", err)
		}
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, place)
	}
}

type reverseResponse struct {
	Address  string          `json:"address"`
	Location domain.Location `json:"location"`
}

// GeocodeReverse always answers with an address; lookup failures yield
// "Unknown location".
func GeocodeReverse(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := locationFromQuery(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), geocodeTimeout)
		defer cancel()

		addr, err := d.Geocoder.Reverse(ctx, loc)
		if err != nil {
			d.Logger.Debug("reverse geocoding failed", logger.Error(err))
		}
		writeJSON(w, http.StatusOK, reverseResponse{Address: addr, Location: loc})
	}
}

func GeocodeSuggest(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := defaultSuggest
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = min(v, maxSuggest)
		}
		ctx, cancel := context.WithTimeout(r.Context(), geocodeTimeout)
		defer cancel()

		places, err := d.Geocoder.Suggest(ctx, q, limit)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if places == nil {
			places = []geocode.Place{}
		}
		writeJSON(w, http.StatusOK, places)
	}
}

func locationFromQuery(r *http.Request) (domain.Location, error) {
	fields := map[string]string{}
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		fields["lat"] = "Latitude must be a number between -90 and 90."
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		fields["lon"] = "Longitude must be a number between -180 and 180."
	}
	if len(fields) > 0 {
		return domain.Location{}, apperr.Validation(fields)
	}
	return domain.Location{Latitude: lat, Longitude: lon}, nil
}
