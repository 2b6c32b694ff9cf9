// Package config loads the wall's settings: defaults in code, then an optional
// YAML file, then WALL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

const (
	Production  = "production"
	Development = "development"
	Test        = "test"
)

type Config struct {
	Env            string   `yaml:"env" validate:"oneof=production development test"`
	Addr           string   `yaml:"addr" validate:"required"`
	BackendURL     string   `yaml:"backend_url" validate:"required,url"`
	DBPath         string   `yaml:"db_path" validate:"required"`
	MigrationsDir  string   `yaml:"migrations_dir"`
	LegacyState    string   `yaml:"legacy_state"`
	StaticDir      string   `yaml:"static_dir"`
	DevFrontendURL string   `yaml:"dev_frontend_url" validate:"omitempty,url"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Auth    Auth    `yaml:"auth"`
	Backend Backend `yaml:"backend"`
	Polling Polling `yaml:"polling"`
	Wall    Wall    `yaml:"wall"`

	// Path is the YAML file the config was read from, if any.
	Path string `yaml:"-"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" validate:"required,min=16"`
	PINHash   string        `yaml:"pin_hash"`
	TokenTTL  time.Duration `yaml:"token_ttl" validate:"gte=0"`
}

type Backend struct {
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	OCRTimeout time.Duration `yaml:"ocr_timeout" validate:"gt=0"`
}

type Polling struct {
	Answers   time.Duration `yaml:"answers" validate:"gt=0"`
	Newest    time.Duration `yaml:"newest" validate:"gt=0"`
	Questions time.Duration `yaml:"questions" validate:"gt=0"`
}

type Wall struct {
	Threshold      float64           `yaml:"threshold" validate:"gt=0,lte=200"`
	PageSize       int               `yaml:"page_size" validate:"gte=1,lte=50"`
	HighlightTTL   time.Duration     `yaml:"highlight_ttl" validate:"gt=0"`
	RotateInterval time.Duration     `yaml:"rotate_interval" validate:"gt=0"`
	DefaultSeason  int               `yaml:"default_season" validate:"gte=-1"`
	Seasons        []services.Season `yaml:"seasons" validate:"required,min=1,dive"`
	Layout         services.Layout   `yaml:"layout"`
}

const devSecret = "wall-dev-secret-change-me"

// Default returns a config that runs against a local backend.
func Default() *Config {
	return &Config{
		Env:        Production,
		Addr:       ":8080",
		BackendURL: "http://localhost:5000",
		DBPath:     "./data/wall.db",
		Auth: Auth{
			TokenTTL: 30 * 24 * time.Hour,
		},
		Backend: Backend{
			Timeout:    10 * time.Second,
			OCRTimeout: 60 * time.Second,
		},
		Polling: Polling{
			Answers:   5 * time.Second,
			Newest:    3 * time.Second,
			Questions: time.Minute,
		},
		Wall: Wall{
			Threshold:      services.DefaultClusterThreshold,
			PageSize:       services.DefaultPageSize,
			HighlightTTL:   services.DefaultHighlightTTL,
			RotateInterval: services.DefaultRotateInterval,
			DefaultSeason:  -1,
			Seasons:        services.DefaultSeasons(),
			Layout:         services.DefaultLayout(),
		},
	}
}

// Load builds the config from defaults, the file named by WALL_CONFIG (if
// any) and the environment.
func Load() (*Config, error) {
	return LoadFile(utils.SafeEnv("WALL_CONFIG", ""))
}

// LoadFile is Load with an explicit file path; "" skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		cfg.Path = path
	}
	cfg.applyEnv()
	if cfg.Auth.JWTSecret == "" && cfg.Env != Production {
		cfg.Auth.JWTSecret = devSecret
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Env = strings.ToLower(utils.SafeEnv("WALL_ENV", c.Env))
	c.Addr = utils.SafeEnv("WALL_ADDR", c.Addr)
	c.BackendURL = utils.SafeEnv("WALL_BACKEND_URL", c.BackendURL)
	c.DBPath = utils.SafeEnv("WALL_DB_PATH", c.DBPath)
	c.MigrationsDir = utils.SafeEnv("WALL_MIGRATIONS_DIR", c.MigrationsDir)
	c.LegacyState = utils.SafeEnv("WALL_LEGACY_STATE", c.LegacyState)
	c.StaticDir = utils.SafeEnv("WALL_STATIC_DIR", c.StaticDir)
	c.DevFrontendURL = utils.SafeEnv("WALL_DEV_FRONTEND_URL", c.DevFrontendURL)
	if v := utils.SafeEnv("WALL_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	c.Auth.JWTSecret = utils.SafeEnv("WALL_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.PINHash = utils.SafeEnv("WALL_PIN_HASH", c.Auth.PINHash)
	c.Auth.TokenTTL = utils.EnvDuration("WALL_TOKEN_TTL", c.Auth.TokenTTL)
	c.Backend.Timeout = utils.EnvDuration("WALL_BACKEND_TIMEOUT", c.Backend.Timeout)
	c.Backend.OCRTimeout = utils.EnvDuration("WALL_OCR_TIMEOUT", c.Backend.OCRTimeout)
	c.Polling.Answers = utils.EnvDuration("WALL_POLL_ANSWERS", c.Polling.Answers)
	c.Polling.Newest = utils.EnvDuration("WALL_POLL_NEWEST", c.Polling.Newest)
	c.Polling.Questions = utils.EnvDuration("WALL_POLL_QUESTIONS", c.Polling.Questions)
	c.Wall.Threshold = utils.EnvFloat("WALL_CLUSTER_THRESHOLD", c.Wall.Threshold)
	c.Wall.HighlightTTL = utils.EnvDuration("WALL_HIGHLIGHT_TTL", c.Wall.HighlightTTL)
	c.Wall.RotateInterval = utils.EnvDuration("WALL_ROTATE_INTERVAL", c.Wall.RotateInterval)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks struct tags and the season calendar.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Env == Production && c.Auth.JWTSecret == devSecret {
		return errors.New("auth.jwt_secret must be set in production")
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether verbose logging and hot reload are wanted.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

func (c *Config) Calendar() (*services.SeasonCalendar, error) {
	return services.NewSeasonCalendar(c.Wall.Seasons, c.Wall.DefaultSeason)
}

// WallSettings converts the wall section into the service's runtime tunables.
func (c *Config) WallSettings() (services.WallSettings, error) {
	cal, err := c.Calendar()
	if err != nil {
		return services.WallSettings{}, err
	}
	return services.WallSettings{
		Calendar:  cal,
		Layout:    c.Wall.Layout,
		Threshold: c.Wall.Threshold,
		PageSize:  c.Wall.PageSize,
	}, nil
}
