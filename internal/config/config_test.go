package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadDefaultsInTestEnv(t *testing.T) {
	t.Setenv("WALL_ENV", "test")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.Polling.Answers)
	assert.Equal(t, 3*time.Second, cfg.Polling.Newest)
	assert.Equal(t, 15.0, cfg.Wall.Threshold)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 6, cal.Len())
	assert.Equal(t, 5, cal.Default())
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("WALL_ENV", "production")
	_, err := LoadFile("")
	require.Error(t, err)

	t.Setenv("WALL_JWT_SECRET", "a-very-long-production-secret")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "a-very-long-production-secret", cfg.Auth.JWTSecret)
}

func TestYAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "wall.yaml", `
env: test
addr: ":9000"
backend_url: "http://backend:5000"
polling:
  answers: 7s
wall:
  threshold: 20
  default_season: 1
  seasons:
    - {label: "Winter 2024", quarter: winter, year: 2024}
    - {label: "Spring 2024", quarter: spring, year: 2024}
    - {label: "Summer 2024", quarter: summer, year: 2024}
  layout:
    default_color: "#ffffff"
`)
	t.Setenv("WALL_ADDR", ":9100")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "http://backend:5000", cfg.BackendURL)
	assert.Equal(t, 7*time.Second, cfg.Polling.Answers)
	assert.Equal(t, 3*time.Second, cfg.Polling.Newest, "unset keys keep defaults")

	st, err := cfg.WallSettings()
	require.NoError(t, err)
	assert.Equal(t, 20.0, st.Threshold)
	assert.Equal(t, 3, st.Calendar.Len())
	assert.Equal(t, 1, st.Calendar.Default())
	assert.Equal(t, "#ffffff", st.Layout.DefaultColor)
	assert.Equal(t, 70.0, st.Layout.AxisScale)
}

func TestValidationRejects(t *testing.T) {
	t.Setenv("WALL_ENV", "test")
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "bogus: 1\n"},
		{"bad quarter", "wall:\n  seasons:\n    - {label: X, quarter: monsoon, year: 2024}\n"},
		{"default out of range", "wall:\n  default_season: 9\n"},
		{"zero threshold", "wall:\n  threshold: -1\n"},
		{"bad backend url", "backend_url: not a url\n"},
		{"inverted safe area", "wall:\n  layout:\n    safe_min: 90\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "wall.yaml", tt.body)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestSevenSeasonCalendar(t *testing.T) {
	t.Setenv("WALL_ENV", "test")
	cfg := Default()
	cfg.Env = Test
	cfg.Auth.JWTSecret = devSecret
	cfg.Wall.Seasons = append(services.DefaultSeasons(), services.Season{Label: "Summer 2025", Quarter: services.Summer, Year: 2025})
	require.NoError(t, cfg.Validate())

	cal, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Equal(t, 7, cal.Len())
	assert.Equal(t, 6, cal.Default())
}

func TestWatcherReloads(t *testing.T) {
	t.Setenv("WALL_ENV", "test")
	dir := t.TempDir()
	path := writeFile(t, dir, "wall.yaml", "wall:\n  threshold: 15\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	got := make(chan float64, 4)
	w.OnChange(func(c *Config) { got <- c.Wall.Threshold })

	writeFile(t, dir, "wall.yaml", "wall:\n  threshold: 25\n")
	select {
	case th := <-got:
		assert.Equal(t, 25.0, th)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	assert.Equal(t, 25.0, w.Current().Wall.Threshold)
}

func TestWatcherRequiresFile(t *testing.T) {
	_, err := NewWatcher(Default(), nil)
	assert.Error(t, err)
}
