package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/itstheanurag/pyjudge/internal/api"
	"github.com/itstheanurag/pyjudge/internal/config"
	"github.com/itstheanurag/pyjudge/internal/database"
	"github.com/itstheanurag/pyjudge/internal/evaluator"
	"github.com/itstheanurag/pyjudge/internal/events"
	"github.com/itstheanurag/pyjudge/internal/limiter"
	"github.com/itstheanurag/pyjudge/internal/problems"
	"github.com/itstheanurag/pyjudge/internal/queue"
	"github.com/itstheanurag/pyjudge/internal/sandbox"
	"github.com/itstheanurag/pyjudge/internal/scratch"
	"github.com/itstheanurag/pyjudge/internal/store"
	"github.com/itstheanurag/pyjudge/internal/worker"
	"github.com/rs/zerolog"
)

const limiterSweepInterval = 5 * time.Minute

type Server struct {
	conf        *config.Config
	logger      *zerolog.Logger
	httpServer  *http.Server
	db          *database.Database
	sandbox     *sandbox.DockerSandbox
	engine      *evaluator.Engine
	queue       *queue.Manager
	pool        *worker.Pool
	events      events.Publisher
	rateLimiter *limiter.RateLimiter
	cancelFunc  context.CancelFunc
	poolDone    chan struct{}
}

func New(
	conf *config.Config,
	logger *zerolog.Logger,
) (*Server, error) {

	db, st, err := newStore(conf, logger)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	ps, err := NewProblemStore(conf.Problems)
	if err != nil {
		closeDB()
		return nil, err
	}

	sb, err := sandbox.NewDockerSandbox(conf.Sandbox.Instance, logger)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	pub, err := NewPublisher(conf.Nats, logger)
	if err != nil {
		_ = sb.Close()
		closeDB()
		return nil, err
	}

	engine := evaluator.NewEngine(
		ps,
		scratch.NewBuilder(conf.Sandbox.WorkRoot, conf.Sandbox.Image),
		sandbox.NewRunner(sb, logger),
		evaluator.ConfigFrom(conf.Sandbox),
		logger,
	)
	q := queue.NewManager(conf.Queue.Capacity)
	pool := worker.NewPool(conf.Queue.Workers, engine, st, pub, q, logger)

	rl := limiter.NewRateLimiter(conf.Limiter.GlobalRPS, conf.Limiter.PerKeyRPS, conf.Limiter.Burst)

	handler := api.NewHandler(engine, ps, st, q, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Limiter:        rl,
		AllowedOrigins: conf.Server.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	s := &Server{
		conf:        conf,
		logger:      logger,
		httpServer:  httpServer,
		db:          db,
		sandbox:     sb,
		engine:      engine,
		queue:       q,
		pool:        pool,
		events:      pub,
		rateLimiter: rl,
		poolDone:    make(chan struct{}),
	}

	return s, nil
}

// newStore returns a nil database for the in-memory backend.
func newStore(conf *config.Config, logger *zerolog.Logger) (*database.Database, store.Store, error) {
	if conf.Db.Backend == "memory" {
		logger.Warn().Msg("using in-memory submission store, results are not persisted")
		return nil, store.NewMemoryStore(), nil
	}

	db, err := database.New(conf, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, store.NewPgStore(db.Pool), nil
}

func NewProblemStore(conf config.ProblemsConfig) (problems.Store, error) {
	switch conf.Backend {
	case "minio":
		ms, err := problems.NewMinioStore(problems.MinioConfig{
			Endpoint:  conf.Endpoint,
			AccessKey: conf.AccessKey,
			SecretKey: conf.SecretKey,
			Bucket:    conf.Bucket,
			UseSSL:    conf.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create problem store: %w", err)
		}
		return ms, nil
	default:
		return problems.NewFSStore(conf.Root), nil
	}
}

func NewPublisher(conf config.NatsConfig, logger *zerolog.Logger) (events.Publisher, error) {
	if conf.URL == "" {
		logger.Info().Msg("no nats url configured, result events disabled")
		return events.Nop{}, nil
	}
	pub, err := events.NewNatsPublisher(conf.URL, conf.SubjectPrefix, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("port", s.conf.Server.Port).
		Int("workers", s.pool.Size()).
		Msg("starting HTTP server")

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelSetup()

	if err := s.sandbox.EnsureImage(setupCtx, s.conf.Sandbox.Image); err != nil {
		return fmt.Errorf("failed to ensure docker image: %w", err)
	}
	if err := s.sandbox.Sweep(setupCtx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to sweep stale sandbox resources")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel

	s.rateLimiter.StartCleanup(ctx, limiterSweepInterval)

	go func() {
		defer close(s.poolDone)
		if err := s.pool.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("worker pool stopped")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

// Stop stops accepting requests, then cancels running evaluations and waits
// for workers to reclaim their sandboxes.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shutdown HTTP server: %w", err))
	}

	s.queue.Close()
	if s.cancelFunc != nil {
		s.cancelFunc()
		select {
		case <-s.poolDone:
		case <-ctx.Done():
			errs = append(errs, errors.New("timed out waiting for workers"))
		}
	}

	s.events.Close()
	if err := s.sandbox.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close docker client: %w", err))
	}
	if s.db != nil {
		s.db.Close()
	}

	return errors.Join(errs...)
}
