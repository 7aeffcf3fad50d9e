package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memotags/internal/category"
	"memotags/internal/config"
	"memotags/internal/db"
	"memotags/internal/hashtag"
	httpx "memotags/internal/http"
	"memotags/internal/jobs"
	"memotags/internal/logging"
	"memotags/internal/memo"
	"memotags/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("exit", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	gdb, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	taxonomy := category.Default()
	if cfg.TaxonomyFile != "" {
		if taxonomy, err = category.LoadFile(cfg.TaxonomyFile); err != nil {
			return err
		}
	}
	extractor, err := hashtag.New(cfg.HashtagMarker)
	if err != nil {
		return err
	}

	var secrets memo.SecretMatcher = memo.PlainSecrets{}
	if cfg.SecretStorage == "bcrypt" {
		secrets = memo.BcryptSecrets{Cost: bcrypt.DefaultCost}
	}

	m := metrics.New("memotags")
	svc := &memo.Service{
		DB:         gdb,
		Extractor:  extractor,
		Classifier: category.NewClassifier(taxonomy, extractor.Marker()),
		Secrets:    secrets,
		Log:        logger.Named("memo"),
		Metrics:    m,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Existing links were computed against whatever taxonomy and marker were
	// live when they were written; one pass per combination brings them up
	// to date.
	jobsRepo := &jobs.Repo{DB: gdb}
	fp := taxonomy.Fingerprint() + ":" + string(extractor.Marker())
	if queued, err := jobsRepo.EnqueueReclassify(ctx, fp); err != nil {
		return fmt.Errorf("enqueue reclassify: %w", err)
	} else if queued {
		logger.Info("reclassify queued", zap.String("fingerprint", fp))
	}

	worker := &jobs.Worker{
		ID:           "worker-" + uuid.NewString()[:8],
		Repo:         jobsRepo,
		Reclassifier: svc,
		Log:          logger.Named("jobs"),
		Metrics:      m,
		Interval:     cfg.WorkerInterval,
	}
	go worker.Run(ctx)

	r := httpx.NewRouter(cfg, httpx.Deps{
		Memos:   svc,
		Vocab:   &memo.Vocabulary{DB: gdb},
		Log:     logger,
		Metrics: m,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.Strings("categories", taxonomy.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-errCh:
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
