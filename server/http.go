package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"lecture-gen/config"
	"lecture-gen/constant"
	jobHandler "lecture-gen/handler"
	"lecture-gen/pkg/collaborator"
	"lecture-gen/pkg/metrics"
	"lecture-gen/pkg/rabbitmq"
	"lecture-gen/pkg/storage"
	"lecture-gen/pkg/tokens"
	"lecture-gen/pkg/worker"
	"lecture-gen/repository"
	"lecture-gen/service"
)

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := newRepository(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRepo")
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	lectureService := service.NewService(
		repo,
		collaborator.NewClient(cfg.Collaborators),
		newTokenCounter(ctx, cfg.Pipeline.TokenizerModel),
		newArtifactStore(cfg),
		m,
		cfg.Pipeline,
	)

	enqueuer, stop, err := startDispatch(ctx, cancel, cfg, lectureService)
	if err != nil {
		return err
	}
	defer stop()

	if cfg.Sweeper.Enabled {
		c := cron.New()
		sweeper := service.NewSweeper(repo, c, cfg.Sweeper.Schedule, cfg.Sweeper.StaleAfter, m)
		if err := sweeper.Schedule(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("schedule", cfg.Sweeper.Schedule).Msg("invalid sweeper schedule")
			return err
		}
		c.Start()
		defer c.Stop()
	}

	r := gin.Default()
	r.Use(withLogger(ctx))
	addHealth(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	jobHandler.NewJobHandler(service.NewJobService(repo, enqueuer), time.Second).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("port", cfg.Server.HttpPort).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
			cancel()
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	if err := handler.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

func newRepository(cfg *config.Config) (repository.JobRepository, error) {
	switch cfg.DBDriver {
	case constant.DBDriverMemory:
		return repository.NewMemoryRepo(), nil
	case constant.DBDriverPostgres:
		return repository.NewRepo(cfg.DB, cfg.App.Environment == constant.EnvironmentDevelop.String())
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}

func newTokenCounter(ctx context.Context, model string) tokens.Counter {
	counter, err := tokens.NewTiktokenCounter(model)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("model", model).Msg("tokenizer unavailable, estimating token counts")
		return tokens.ApproxCounter{}
	}
	return counter
}

func newArtifactStore(cfg *config.Config) storage.ArtifactStore {
	if cfg.Storage == nil || cfg.MinIOBucket == "" {
		return storage.NewNopStore()
	}
	return storage.NewMinIOStore(cfg.Storage, cfg.MinIOBucket)
}

// startDispatch wires the background execution side for the configured mode
// and returns the enqueuer the dispatcher hands jobs to. cancel stops the
// process when the execution side dies on its own.
func startDispatch(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, lectureService service.Service) (service.Enqueuer, func(), error) {
	switch cfg.Dispatch.Mode {
	case constant.DispatchModeLocal:
		pool := worker.NewPool(cfg.Server.Workers, cfg.Dispatch.QueueSize, lectureService.Process)
		pool.OnAbandon(lectureService.Abandon)
		pool.Start(ctx)
		return pool, pool.Shutdown, nil

	case constant.DispatchModeRabbitMQ:
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
			return nil, nil, err
		}

		serviceDeps := jobHandler.ServiceDependencies{
			LectureService: lectureService,
		}
		lectureConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.LectureJobHandler)
		go runConsumer(ctx, cancel, func(ctx context.Context) error {
			return lectureConsumer.Consume(ctx, serviceDeps)
		})

		return rabbitmq.NewPublisher(conn, cfg.Queue), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown dispatch mode %q", cfg.Dispatch.Mode)
	}
}

// runConsumer blocks on consume. If it returns while ctx is still live, nobody
// drains the queue any more, so the process is shut down.
func runConsumer(ctx context.Context, cancel context.CancelFunc, consume func(ctx context.Context) error) {
	err := consume(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Lecture consumer error")
	}
	if ctx.Err() == nil {
		zerolog.Ctx(ctx).Error().Msg("lecture consumer stopped, shutting down")
		cancel()
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

// withLogger makes the process logger reachable from request contexts.
func withLogger(ctx context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
