package deps

import (
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/backend"
	"github.com/MrSnakeDoc/mapmarks/internal/cache"
	"github.com/MrSnakeDoc/mapmarks/internal/catalog"
	"github.com/MrSnakeDoc/mapmarks/internal/geocode"
	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/media"
	"github.com/MrSnakeDoc/mapmarks/internal/payload"
	"github.com/MrSnakeDoc/mapmarks/internal/presentation"
	"github.com/MrSnakeDoc/mapmarks/internal/session"
	"github.com/MrSnakeDoc/mapmarks/internal/workspace"
	"github.com/redis/go-redis/v9"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on ops endpoints
	AllowedCIDRS []string         // IPs allowed on ops endpoints
	AllowOrigins []string         // CORS origins for /api
	TrustProxy   bool             // true if running behind a trusted reverse proxy
	RateBurst    int              // per-IP burst on /api
	RatePerMin   int              // per-IP refill on /api

	RedisClient *redis.Client // nil when neither cache nor sessions use Redis
	Cache       cache.Cache
	Backend     *backend.Client
	Catalog     *catalog.Catalog
	Sessions    *session.Manager
	Workspaces  *workspace.Manager
	Payloads    *payload.Builder
	Geocoder    *geocode.Client
	Uploader    *media.Uploader
	Style       *presentation.Style
	ImageBase   string // prefix of image links in views

	ReloadTrigger chan struct{} // manual catalog refresh
}

// Now returns the injected clock or time.Now.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
