package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"delivery/internal/devserver"
)

// Config holds CLI flags for the stub backend.
type Config struct {
	Addr         string
	Secret       string
	TokenTTL     time.Duration
	AllowOrigins string
	AccessLog    bool
}

func main() {
	_ = godotenv.Load()
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("devserver failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Addr, "addr", ":8081", "listen address")
	flag.StringVar(&cfg.Secret, "jwt-secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", 2*time.Hour, "token lifetime")
	flag.StringVar(&cfg.AllowOrigins, "allow-origins", os.Getenv("CORS_ALLOW_ORIGINS"), "comma-separated CORS origins, empty allows all")
	flag.BoolVar(&cfg.AccessLog, "access-log", true, "log every request")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	gin.SetMode(gin.ReleaseMode)
	var origins []string
	for _, o := range strings.Split(cfg.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if cfg.Secret == "" {
		log.Printf("no --jwt-secret given, using the built-in development secret")
	}
	dev := devserver.New(devserver.Config{
		Secret:       cfg.Secret,
		TokenTTL:     cfg.TokenTTL,
		AllowOrigins: origins,
		AccessLog:    cfg.AccessLog,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", dev.Handler())

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("devserver listening addr=%s ttl=%s origins=%v", cfg.Addr, cfg.TokenTTL, origins)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("devserver stopped")
	return nil
}
