package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends understood by CacheBackend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheValkey = "valkey"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline applied by the router

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Upstream bookmarks API
	BackendURL     string        // ex: "http://localhost:8080/api"
	BackendTimeout time.Duration // per-call timeout
	ImageBase      string        // prefix of image links in views, ex: "/api" serves them through the proxy

	// Response cache
	CacheBackend string        // memory | redis | valkey
	CacheTTL     time.Duration // entries older than this are misses (default 5m)
	ValkeyAddr   string        // required when CacheBackend=valkey

	// Sessions
	SessionTTL      time.Duration // used when the backend token carries no exp claim
	WorkspaceIdle   time.Duration // wizard/map state older than this is dropped
	SweepSchedule   string        // cron spec for the workspace sweeper
	RefreshInterval time.Duration // periodic catalog refresh

	// Wizard
	StrictWizard bool // description <= 250 chars, coordinates required

	// Media
	CloudinaryCloud  string
	CloudinaryPreset string
	CloudinaryURL    string // base, overridable for tests
	MaxImageBytes    int64
	MaxVideoBytes    int64
	MaxImages        int

	// Geocoding
	NominatimURL     string
	NominatimAgent   string
	NominatimRPS     float64
	SearchDebounce   time.Duration
	PresentationFile string // optional YAML with category colors / tag icons

	// Redis
	RedisAddr             string        // ex: "localhost:6379", empty => memory session store
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password when RedisAddr is set
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions (ops endpoints)
	AllowedHosts []string // optional, restrict /infra, /reload, /metrics to these Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to these IPs/CIDRs
	AllowOrigins []string // CORS origins, "*" allowed
	TrustProxy   bool     // true => trust X-Forwarded-For headers
	RateBurst    int      // per-IP burst on /api
	RatePerMin   int      // per-IP refill on /api
}

// Load reads the environment (after an optional .env file) into a Config.
// Missing required values panic, matching the fail-fast startup of the service.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded environment from .env")
	}

	cfg := &Config{
		ListenPort:      getenv("MAPMARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MAPMARKS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("MAPMARKS_REQUEST_TIMEOUT", 30*time.Second),

		LogLevel:  getenv("MAPMARKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MAPMARKS_PRETTY_LOG", true),

		BackendURL:     strings.TrimRight(requireEnv("MAPMARKS_BACKEND_URL"), "/"),
		BackendTimeout: mustDuration("MAPMARKS_BACKEND_TIMEOUT", 10*time.Second),
		ImageBase:      strings.TrimRight(getenv("MAPMARKS_IMAGE_BASE", "/api"), "/"),

		CacheBackend: strings.ToLower(getenv("MAPMARKS_CACHE_BACKEND", CacheMemory)),
		CacheTTL:     mustDuration("MAPMARKS_CACHE_TTL", 5*time.Minute),
		ValkeyAddr:   getenv("MAPMARKS_VALKEY_ADDR", ""),

		SessionTTL:      mustDuration("MAPMARKS_SESSION_TTL", 24*time.Hour),
		WorkspaceIdle:   mustDuration("MAPMARKS_WORKSPACE_IDLE_TTL", 2*time.Hour),
		SweepSchedule:   getenv("MAPMARKS_SWEEP_SCHEDULE", "@every 10m"),
		RefreshInterval: mustDuration("MAPMARKS_REFRESH_INTERVAL", 5*time.Minute),

		StrictWizard: mustBool("MAPMARKS_STRICT_WIZARD", false),

		CloudinaryCloud:  getenv("MAPMARKS_CLOUDINARY_CLOUD", ""),
		CloudinaryPreset: getenv("MAPMARKS_CLOUDINARY_PRESET", "ml_default"),
		CloudinaryURL:    getenv("MAPMARKS_CLOUDINARY_URL", "https://api.cloudinary.com/v1_1"),
		MaxImageBytes:    int64(getenvInt("MAPMARKS_MAX_IMAGE_BYTES", 10<<20)),
		MaxVideoBytes:    int64(getenvInt("MAPMARKS_MAX_VIDEO_BYTES", 100<<20)),
		MaxImages:        getenvInt("MAPMARKS_MAX_IMAGES", 10),

		NominatimURL:     getenv("MAPMARKS_NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimAgent:   getenv("MAPMARKS_NOMINATIM_USER_AGENT", "mapmarks/1.0"),
		NominatimRPS:     getenvFloat("MAPMARKS_NOMINATIM_RPS", 1),
		SearchDebounce:   mustDuration("MAPMARKS_SEARCH_DEBOUNCE", 300*time.Millisecond),
		PresentationFile: getenv("MAPMARKS_PRESENTATION_FILE", ""),

		RedisAddr:             getenv("MAPMARKS_REDIS_ADDR", ""),
		RedisUser:             getenv("MAPMARKS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MAPMARKS_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("MAPMARKS_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("MAPMARKS_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		AllowedHosts: splitAndTrim(getenv("MAPMARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("MAPMARKS_ALLOWED_CIDRS", "")),
		AllowOrigins: splitAndTrim(getenv("MAPMARKS_ALLOW_ORIGINS", "*")),
		TrustProxy:   mustBool("MAPMARKS_TRUST_PROXY", false),
		RateBurst:    getenvInt("MAPMARKS_RATE_BURST", 60),
		RatePerMin:   getenvInt("MAPMARKS_RATE_PER_MIN", 120),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("MAPMARKS_REDIS_ADDR is required when MAPMARKS_CACHE_BACKEND=redis")
		}
	case CacheValkey:
		if c.ValkeyAddr == "" {
			return fmt.Errorf("MAPMARKS_VALKEY_ADDR is required when MAPMARKS_CACHE_BACKEND=valkey")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want memory, redis or valkey)", c.CacheBackend)
	}
	if c.RedisAddr != "" && c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("MAPMARKS_REDIS_PASSWORD is required when MAPMARKS_REDIS_PASSWORD_REQUIRED=true")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("MAPMARKS_CACHE_TTL must be > 0, got %v", c.CacheTTL)
	}
	if c.NominatimRPS <= 0 {
		return fmt.Errorf("MAPMARKS_NOMINATIM_RPS must be > 0, got %v", c.NominatimRPS)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
