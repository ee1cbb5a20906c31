package properties

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultTileSize     = 512
	DefaultPollInterval = 500 * time.Millisecond
	DefaultAPIURL       = "https://sh.dataspace.copernicus.eu"
)

type Config struct {
	RootPath string

	TileSize     int
	PollInterval time.Duration
	Workers      int

	Denoiser        string
	DenoiserAddr    string
	DenoiserTimeout time.Duration

	Copernicus Copernicus
	Storage    Storage
	Discord    Discord

	LogLevel    string
	Environment string
}

type Copernicus struct {
	ClientIDs     []string
	ClientSecrets []string
	TokenURL      string
	APIURL        string
	Retries       int
	RetryDelay    time.Duration
}

type Storage struct {
	Backend   string
	Bucket    string
	Key       string
	Secret    string
	Endpoint  string
	Region    string
	GCSBucket string
}

type Discord struct {
	ErrorURL   string
	SuccessURL string
	WarnURL    string
}

// LoadEnvFiles loads the first .env found walking up from the working
// directory, the way the CLI is launched from cmd/ or the repo root.
func LoadEnvFiles() error {
	for _, p := range []string{"../../.env", "../.env", ".env"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		return nil
	}
	return nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("ROOT_PATH", ".")
	v.SetDefault("TILE_SIZE", DefaultTileSize)
	v.SetDefault("POLL_INTERVAL", DefaultPollInterval)
	v.SetDefault("WORKERS", 1)
	v.SetDefault("DENOISER", "grpc")
	v.SetDefault("DENOISER_ADDR", "localhost:50051")
	v.SetDefault("DENOISER_TIMEOUT", 60*time.Second)
	v.SetDefault("COPERNICUS_API_URL", DefaultAPIURL)
	v.SetDefault("REQUEST_RETRIES", 10)
	v.SetDefault("RETRY_DELAY", 5*time.Second)
	v.SetDefault("STORAGE", "local")
	v.SetDefault("OBJECT_STORE_REGION", "us-west-2")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENVIRONMENT", "local")
}

// Load builds a Config from v. Environment variables override defaults and
// bound flags override both.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		RootPath:        v.GetString("ROOT_PATH"),
		TileSize:        v.GetInt("TILE_SIZE"),
		PollInterval:    v.GetDuration("POLL_INTERVAL"),
		Workers:         v.GetInt("WORKERS"),
		Denoiser:        strings.ToLower(v.GetString("DENOISER")),
		DenoiserAddr:    v.GetString("DENOISER_ADDR"),
		DenoiserTimeout: v.GetDuration("DENOISER_TIMEOUT"),
		Copernicus: Copernicus{
			ClientIDs:     splitList(v.GetString("COPERNICUS_CLIENT_ID")),
			ClientSecrets: splitList(v.GetString("COPERNICUS_CLIENT_SECRET")),
			TokenURL:      v.GetString("COPERNICUS_TOKEN_URL"),
			APIURL:        strings.TrimSuffix(v.GetString("COPERNICUS_API_URL"), "/"),
			Retries:       v.GetInt("REQUEST_RETRIES"),
			RetryDelay:    v.GetDuration("RETRY_DELAY"),
		},
		Storage: Storage{
			Backend:   strings.ToLower(v.GetString("STORAGE")),
			Bucket:    v.GetString("OBJECT_STORE_BUCKET"),
			Key:       v.GetString("OBJECT_STORE_KEY"),
			Secret:    v.GetString("OBJECT_STORE_SECRET"),
			Endpoint:  v.GetString("OBJECT_STORE_ENDPOINT"),
			Region:    v.GetString("OBJECT_STORE_REGION"),
			GCSBucket: v.GetString("GCS_BUCKET"),
		},
		Discord: Discord{
			ErrorURL:   v.GetString("DISCORD_ERROR_NOTIFICATION_URL"),
			SuccessURL: v.GetString("DISCORD_SUCCESS_NOTIFICATION_URL"),
			WarnURL:    v.GetString("DISCORD_WARN_NOTIFICATION_URL"),
		},
		LogLevel:    v.GetString("LOG_LEVEL"),
		Environment: v.GetString("ENVIRONMENT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RootPath == "" {
		return fmt.Errorf("%w: ROOT_PATH", ErrMissingSetting)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("%w: TILE_SIZE must be positive, got %d", ErrInvalidSetting, c.TileSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be positive, got %s", ErrInvalidSetting, c.PollInterval)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if len(c.Copernicus.ClientIDs) != len(c.Copernicus.ClientSecrets) {
		return fmt.Errorf("%w: %d client ids for %d client secrets", ErrInvalidSetting,
			len(c.Copernicus.ClientIDs), len(c.Copernicus.ClientSecrets))
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: OBJECT_STORE_BUCKET", ErrMissingSetting)
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("%w: GCS_BUCKET", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("%w: unknown STORAGE %q", ErrInvalidSetting, c.Storage.Backend)
	}
	return nil
}

// HasCredentials reports whether the imagery API can be reached.
func (c *Config) HasCredentials() bool {
	return len(c.Copernicus.ClientIDs) > 0 && c.Copernicus.TokenURL != ""
}

func (c *Config) DataPath(parts ...string) string {
	return filepath.Join(append([]string{c.RootPath, "data"}, parts...)...)
}

func (c *Config) GeoJSONDir() string {
	return c.DataPath("geojsons")
}

func (c *Config) ReportDir() string {
	return c.DataPath("reports")
}

// BandDir is where exported rasters of one band land. The same path is used
// as the export folder for remote sinks.
func (c *Config) BandDir(site, satellite, band string) string {
	return c.DataPath(site, satellite, band)
}

// RawDir holds unmasked single-scene exports of a band awaiting the local
// cloud mask.
func (c *Config) RawDir(site, satellite, band string) string {
	return filepath.Join(c.BandDir(site, satellite, band), "raw")
}

func (c *Config) VisualizedDir(site, satellite, band string) string {
	return filepath.Join(c.BandDir(site, satellite, band), "visualized")
}

func (c *Config) IndexDir(site, satellite, index string) string {
	return c.DataPath(site, satellite, "index", strings.ToUpper(index))
}

func (c *Config) RadarDir(site, orbit, polarization string) string {
	return c.DataPath(site, "sentinel1", strings.ToLower(orbit), strings.ToUpper(polarization))
}

func (c *Config) DespeckledDir(site, orbit, polarization string) string {
	return filepath.Join(c.RadarDir(site, orbit, polarization), "filtered")
}

func (c *Config) FusionDir(site string) string {
	return c.DataPath(site, "fusion")
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create folder %s: %w", dir, err)
	}
	return dir, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
