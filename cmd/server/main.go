package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/api"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/backend"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/config"
	dbstore "github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/db"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/metrics"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/middleware"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/poller"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/services"
	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

func main() {
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1], os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}
	if err := serve(); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	store, err := dbstore.Open(cfg.DBPath, cfg.MigrationsDir, logger.Named("db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := MigrateLegacyState(ctx, cfg.LegacyState, store, logger); err != nil {
		logger.Warn("legacy state import failed", zap.Error(err))
	}

	collector := metrics.NewCollector("wall")
	client, err := backend.NewClient(backend.Options{
		BaseURL:    cfg.BackendURL,
		Timeout:    cfg.Backend.Timeout,
		OCRTimeout: cfg.Backend.OCRTimeout,
		Logger:     logger.Named("backend"),
		OnStateChange: func(from, to gobreaker.State) {
			collector.BreakerState(from, to)
		},
	})
	if err != nil {
		return err
	}

	lastSeen, err := store.LastSeenAnswer(ctx)
	if err != nil {
		logger.Warn("read last seen answer", zap.Error(err))
	}
	tracker := services.NewHighlightTracker(services.RealClock(), cfg.Wall.HighlightTTL, lastSeen, logger.Named("highlight"))
	tracker.OnSeen(store.RememberLastSeen)
	defer tracker.Stop()

	rotator := services.NewPageRotator(services.RealClock(), cfg.Wall.RotateInterval)
	defer rotator.Close()

	settings, err := cfg.WallSettings()
	if err != nil {
		return err
	}
	wall := services.NewWallService(client, store, tracker, rotator, settings, logger.Named("wall"))
	if err := wall.Seed(ctx); err != nil {
		logger.Warn("seed wall from cache", zap.Error(err))
	}

	questions := services.NewQuestionService(client, func() services.Layout { return wall.Settings().Layout }, logger.Named("questions"))
	scan := services.NewScanService(client, tracker, wall, logger.Named("scan")).WithSubmissionLog(store)
	tokenAuth := middleware.NewTokenAuth(cfg.Auth.JWTSecret)
	kioskAuth := services.NewKioskAuthService(cfg.Auth.PINHash, tokenAuth.SignToken, cfg.Auth.TokenTTL)
	if cfg.Auth.PINHash == "" {
		logger.Warn("no kiosk PIN configured, pairing disabled")
	}

	if cfg.Path != "" {
		watcher, err := config.NewWatcher(cfg, logger.Named("config"))
		if err != nil {
			logger.Warn("config watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
			watcher.OnChange(func(next *config.Config) {
				st, err := next.WallSettings()
				if err != nil {
					logger.Warn("ignoring reloaded wall settings", zap.Error(err))
					return
				}
				wall.Apply(st)
			})
		}
	}

	p := poller.New(wall, client, tracker, collector, poller.Intervals{
		Answers:   cfg.Polling.Answers,
		Newest:    cfg.Polling.Newest,
		Questions: cfg.Polling.Questions,
	}, logger.Named("poller"))
	p.Start(ctx)
	defer p.Stop()

	mux := http.NewServeMux()
	api.NewRouter(api.Deps{
		Wall:         wall,
		Tracker:      tracker,
		Scan:         scan,
		Questions:    questions,
		KioskAuth:    kioskAuth,
		Auth:         tokenAuth,
		Submissions:  store,
		Recorder:     collector,
		Metrics:      collector.Handler(),
		BreakerState: func() string { return client.BreakerState().String() },
		Commit:       utils.SafeEnv("WALL_COMMIT", ""),
		BuildTime:    utils.SafeEnv("WALL_BUILD_TIME", ""),
		Logger:       logger.Named("api"),
	}).Register(mux)
	mountFrontend(mux, cfg, logger)

	// Metrics wraps the mux directly so it sees the matched pattern.
	var handler http.Handler = middleware.Metrics(collector)(mux)
	handler = middleware.Locale(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.SecureHeaders(handler)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.Logger(logger.Named("http"))(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recover(logger)(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// scans wait on OCR
		WriteTimeout: cfg.Backend.OCRTimeout + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("opinion wall listening", zap.String("addr", cfg.Addr), zap.String("backend", cfg.BackendURL), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mountFrontend serves the display: static files if a build directory is
// configured, otherwise a proxy to the dev server.
func mountFrontend(mux *http.ServeMux, cfg *config.Config, logger *zap.Logger) {
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
		return
	}
	if cfg.DevFrontendURL == "" {
		return
	}
	u, err := url.Parse(cfg.DevFrontendURL)
	if err != nil {
		logger.Warn("invalid dev frontend url", zap.String("url", cfg.DevFrontendURL), zap.Error(err))
		return
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ModifyResponse = func(res *http.Response) error {
		res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		res.Header.Set("Pragma", "no-cache")
		res.Header.Set("Expires", "0")
		return nil
	}
	mux.Handle("/", rp)
}
