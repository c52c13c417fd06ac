package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/moverq1337/hireboard/internal/analytics"
	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/config"
	"github.com/moverq1337/hireboard/internal/db"
	"github.com/moverq1337/hireboard/internal/extractor"
	"github.com/moverq1337/hireboard/internal/filestore"
	"github.com/moverq1337/hireboard/internal/handlers"
	"github.com/moverq1337/hireboard/internal/ranking"
	"github.com/moverq1337/hireboard/internal/scoring"
	"github.com/moverq1337/hireboard/internal/scoring/gemini"
	"github.com/moverq1337/hireboard/internal/scoring/nlp"
	"github.com/moverq1337/hireboard/internal/service"
	"github.com/moverq1337/hireboard/internal/store"
)

const (
	shutdownTimeout    = 15 * time.Second
	geminiMaxLogLength = 2000
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "apply migrations before serving")
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	conn, err := db.Connect(cfg.DBURL, log)
	if err != nil {
		return err
	}
	if autoMigrate {
		if err := db.Migrate(conn); err != nil {
			return err
		}
	}

	files, err := newFileStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	scorer, closeScorer, err := newScorer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeScorer()

	opts, err := newCVGenerator(ctx, cfg, log)
	if err != nil {
		return err
	}

	st := store.New(conn, ranking.NewEngine(conn, log), log, store.WithFiles(files))
	svc := service.New(st, extractor.New(log), scoring.NewAdapter(scorer, cfg.ScorerTimeout, log), files, log, opts...)
	agg := analytics.New(conn, st, log)

	limiter, closeLimiter := newLimiter(ctx, cfg, log)
	defer closeLimiter()

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 2 * extractor.MaxFileSize
	r.Use(gin.Recovery(), handlers.RequestLogger(log))
	handlers.SetupRoutes(r, handlers.New(svc, agg, limiter, cfg.RateLimitPerMinute, log))

	srv := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   cfg.HTTPPort,
			"scorer": cfg.ScorerProvider,
		}).Info("hireboard is listening")
		if err := srv.ListenAndServe(); err != nil && !apperrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return apperrors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.Wrap(err, "shutdown")
	}
	return nil
}

// newScorer picks the scoring backend named by SCORER_PROVIDER. The returned
// func releases its connections.
func newScorer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (scoring.Scorer, func(), error) {
	noop := func() {}
	switch cfg.ScorerProvider {
	case config.ProviderGemini:
		gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("model", gen.Model()).Info("using gemini scorer")
		return gemini.NewScorer(gen, log, geminiMaxLogLength), noop, nil
	case config.ProviderNLP:
		client, conn, err := nlp.Dial(cfg.GRPCAddr)
		if err != nil {
			return nil, noop, err
		}
		log.WithField("addr", cfg.GRPCAddr).Info("using nlp scorer")
		return client, func() { conn.Close() }, nil
	case config.ProviderKeyword:
		return scoring.Keyword{}, noop, nil
	default:
		log.Warn("AI scoring is disabled, every application gets a neutral score")
		return scoring.Disabled{}, noop, nil
	}
}

// newCVGenerator enables CV drafting through Gemini when an API key is set,
// whatever scorer is in use.
func newCVGenerator(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) ([]service.Option, error) {
	if cfg.GeminiAPIKey == "" {
		log.Info("cv generation is disabled, set GEMINI_API_KEY to enable it")
		return nil, nil
	}
	gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return []service.Option{service.WithCVGenerator(gemini.NewCVGenerator(gen, log, geminiMaxLogLength), 0)}, nil
}

// newFileStore keeps CV files on Yandex.Disk when a token is configured and
// on local disk otherwise.
func newFileStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (filestore.Store, error) {
	if cfg.YandexDiskToken == "" {
		log.WithField("dir", cfg.UploadDir).Info("storing cv files on local disk")
		return filestore.NewLocal(cfg.UploadDir)
	}

	disk, err := filestore.NewYandexDisk(cfg.YandexDiskToken, cfg.YandexDiskFolder, log)
	if err != nil {
		return nil, err
	}
	if err := disk.EnsureFolder(ctx); err != nil {
		return nil, err
	}
	log.WithField("folder", cfg.YandexDiskFolder).Info("storing cv files on yandex disk")
	return disk, nil
}

// newLimiter shares submission limits through Redis when it is reachable.
func newLimiter(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (handlers.Limiter, func()) {
	if cfg.RedisAddr == "" {
		return handlers.NewLocalLimiter(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unreachable, limiting submissions per process")
		client.Close()
		return handlers.NewLocalLimiter(), func() {}
	}
	return handlers.NewRedisLimiter(client, log), func() { client.Close() }
}
