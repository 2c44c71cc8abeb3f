package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"delivery/internal/api"
	"delivery/internal/auth"
	"delivery/internal/dashboard"
	"delivery/internal/export"
	"delivery/internal/journal"
	"delivery/internal/metrics"
	"delivery/internal/orders"
	"delivery/internal/router"
	"delivery/internal/session"
	"delivery/internal/shell"
	"delivery/internal/storage"
)

// Config holds CLI flags for the terminal client.
type Config struct {
	APIURL      string
	HTTPTimeout time.Duration

	StateBackend string // memory|pebble|badger|redis
	StateDir     string
	RedisAddr    string
	RedisPrefix  string

	JournalSink    string // none|file|kafka|both
	JournalDir     string
	KafkaBootstrap string
	JournalTopic   string

	ExportDir   string
	MetricsAddr string
	LogFile     string
}

func main() {
	_ = godotenv.Load()
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("delivery failed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func readFlags() Config {
	var cfg Config
	timeout, _ := time.ParseDuration(envOr("DELIVERY_HTTP_TIMEOUT", "0s"))
	flag.StringVar(&cfg.APIURL, "api-url", envOr("DELIVERY_API_URL", "http://localhost:8081"), "backend base url")
	flag.DurationVar(&cfg.HTTPTimeout, "http-timeout", timeout, "whole-request timeout, 0 keeps the transport default")
	flag.StringVar(&cfg.StateBackend, "state-backend", envOr("DELIVERY_STATE_BACKEND", "pebble"), "session storage: memory|pebble|badger|redis")
	flag.StringVar(&cfg.StateDir, "state-dir", envOr("DELIVERY_STATE_DIR", "./data/session"), "session storage directory for pebble|badger")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", envOr("REDIS_ADDR", "localhost:6379"), "redis address for the redis backend")
	flag.StringVar(&cfg.RedisPrefix, "redis-prefix", envOr("DELIVERY_REDIS_PREFIX", "delivery:session:"), "redis key prefix")
	flag.StringVar(&cfg.JournalSink, "journal-sink", envOr("DELIVERY_JOURNAL_SINK", "file"), "activity journal sink: none|file|kafka|both")
	flag.StringVar(&cfg.JournalDir, "journal-dir", envOr("DELIVERY_JOURNAL_DIR", "./data/journal"), "journal directory")
	flag.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", envOr("KAFKA_BOOTSTRAP", ""), "kafka bootstrap servers, e.g. localhost:9092")
	flag.StringVar(&cfg.JournalTopic, "journal-topic", envOr("DELIVERY_JOURNAL_TOPIC", "delivery.activity"), "kafka topic for the journal")
	flag.StringVar(&cfg.ExportDir, "export-dir", envOr("DELIVERY_EXPORT_DIR", "./exports"), "order export directory")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", envOr("DELIVERY_METRICS_ADDR", ""), "serve /metrics on this address when set")
	flag.StringVar(&cfg.LogFile, "log-file", envOr("DELIVERY_LOG_FILE", "delivery.log"), "log destination, '-' for stderr")
	flag.Parse()
	return cfg
}

func openStorage(cfg Config) (storage.Store, func() error, error) {
	switch cfg.StateBackend {
	case "memory":
		ms := storage.NewInMemoryStore()
		return ms, ms.Close, nil
	case "pebble":
		ps, err := storage.NewPebbleStore(cfg.StateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init pebble: %w", err)
		}
		return ps, ps.Close, nil
	case "badger":
		bs, err := storage.NewBadgerStore(cfg.StateDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init badger: %w", err)
		}
		return bs, bs.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storage.NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
}

func openJournal(cfg Config) (journal.Writer, func() error, error) {
	nop := func() error { return nil }
	var writers []journal.Writer
	closers := []func() error{}
	if cfg.JournalSink == "file" || cfg.JournalSink == "both" {
		fw, err := journal.NewFileWriter(cfg.JournalDir, "activity.jsonl")
		if err != nil {
			return nil, nil, fmt.Errorf("init journal file: %w", err)
		}
		writers = append(writers, fw)
	}
	if cfg.JournalSink == "kafka" || cfg.JournalSink == "both" {
		if cfg.KafkaBootstrap == "" {
			return nil, nil, errors.New("journal sink kafka requires --kafka-bootstrap")
		}
		kw := journal.NewKafkaWriter(cfg.KafkaBootstrap, cfg.JournalTopic)
		writers = append(writers, kw)
		closers = append(closers, kw.Close)
	}
	switch len(writers) {
	case 0:
		if cfg.JournalSink != "none" && cfg.JournalSink != "" {
			return nil, nil, fmt.Errorf("unknown journal sink %q", cfg.JournalSink)
		}
		return journal.Nop{}, nop, nil
	case 1:
		return writers[0], closeAll(closers), nil
	}
	return journal.NewMultiWriter(writers...), closeAll(closers), nil
}

func closeAll(fns []func() error) func() error {
	return func() error {
		var errs []error
		for _, fn := range fns {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}
}

func run(cfg Config) error {
	// The terminal is the UI; keep logs out of it unless asked.
	if cfg.LogFile != "-" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}
	log.Printf("starting delivery client api=%s state=%s journal=%s", cfg.APIURL, cfg.StateBackend, cfg.JournalSink)

	store, closeStore, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	jw, closeJournal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	mreg := metrics.NewRegistry()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", mreg.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	sess := session.New(store)
	sess.Restore()

	gw, err := api.NewGateway(cfg.APIURL, sess, api.WithMetrics(mreg), api.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		return err
	}
	client := api.NewClient(gw)
	jr := journal.New(jw, mreg)

	guard := router.NewGuard(sess)
	defer guard.Close()

	sh := shell.New(shell.Deps{
		Auth:     auth.NewFlow(client, sess, jr),
		Dash:     dashboard.New(client, sess, orders.NewStore(), dashboard.WithJournal(jr), dashboard.WithMetrics(mreg)),
		Guard:    guard,
		Session:  sess,
		Exporter: export.NewFilesystemExporter(cfg.ExportDir),
	}, os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := sh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	log.Printf("delivery client stopped")
	return nil
}
