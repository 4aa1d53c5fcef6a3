package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Bookmarks  *int   `json:"bookmarks,omitempty"`
	OnMap      *int   `json:"on_map,omitempty"`
	Active     *int   `json:"active,omitempty"`
	LastReload string `json:"last_reload,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx := d.Catalog.Index()
		bookmarks := idx.BookmarkCount()
		onMap := idx.MappedCount()
		lastReload := "never"
		if t := idx.GetLastBookmarkReload(); !t.IsZero() {
			lastReload = t.Format("2006-01-02 15:04:05")
		}
		active := d.Workspaces.Len()

		components := map[string]componentStatus{
			"catalog": {
				OK:         !idx.GetLastBookmarkReload().IsZero(),
				Bookmarks:  &bookmarks,
				OnMap:      &onMap,
				LastReload: lastReload,
			},
			"cache":      {OK: true, Mode: cacheMode(d)},
			"redis":      checkRedis(r.Context(), d),
			"workspaces": {OK: true, Active: &active},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func cacheMode(d deps.Deps) string {
	if d.Cache == nil {
		return "disabled"
	}
	return d.Cache.Backend()
}

// determineMode: no catalog is critical, a lost Redis only degrades.
func determineMode(components map[string]componentStatus) string {
	if c, ok := components["catalog"]; ok && !c.OK {
		return "critical"
	}
	if rd, ok := components["redis"]; ok && !rd.OK && rd.Mode != "unused" {
		return "degraded"
	}
	return "optimal"
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "unused"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "cache-misses-and-session-loss",
			Error:  "timeout",
		}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}
