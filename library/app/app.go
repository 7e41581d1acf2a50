package app

import (
	"context"
	"crypto/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Astemirdum/library-catalog/library/config"
	"github.com/Astemirdum/library-catalog/library/internal/handler"
	"github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/library/internal/server"
	"github.com/Astemirdum/library-catalog/library/internal/service"
	"github.com/Astemirdum/library-catalog/library/migrations"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/Astemirdum/library-catalog/pkg/poller"
	"github.com/Astemirdum/library-catalog/pkg/postgres"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("repository", zap.Error(err))
	}
	repo := repository.NewCached(backend, log)
	defer repo.Close() //nolint:errcheck

	opts := []service.Option{service.WithMaxRetries(cfg.Store.MaxRetries)}
	var enqueuer *handler.Enqueuer
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		enqueuer = handler.NewEnqueuer(producer, kafka.CatalogTopic)
		defer enqueuer.Close() //nolint:errcheck
		opts = append(opts, service.WithPublisher(enqueuer))
	}
	svc := service.NewService(repo, log, opts...)

	if cfg.Store.Seed {
		if _, err := svc.Seed(ctx); err != nil {
			log.Fatal("seed", zap.Error(err))
		}
	}

	authSvc, err := newAuthService(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("auth", zap.Error(err))
	}

	syncer := poller.New(cfg.Sync.Interval, svc.Refresh, log)

	h := handler.New(svc, authSvc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		return syncer.Run(gCtx)
	})
	if cfg.Store.Watch && cfg.Store.Driver == repository.DriverFile {
		g.Go(func() error {
			return repository.WatchFile(gCtx, cfg.Store.DataFile, log, syncer.Trigger)
		})
	}
	if cfg.Kafka.Enabled() {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.InstanceGroup(kafka.CatalogConsumerGroup))
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		g.Go(func() error {
			return kafka.Consume(gCtx, consumer, handler.NewConsumer(syncer.Trigger, log), log, kafka.CatalogTopic)
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}

func newBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Repository, error) {
	switch cfg.Store.Driver {
	case repository.DriverFile, "":
		return repository.NewFileRepository(cfg.Store.DataFile, log)
	case repository.DriverPostgres:
		db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			return nil, errors.Wrap(err, "db init")
		}
		return repository.NewPostgresRepository(db, log)
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newAuthService(ctx context.Context, cfg config.Auth, log *zap.Logger) (*service.AuthService, error) {
	key := []byte(cfg.JWTKey)
	if len(key) == 0 {
		// tokens die with the process anyway, sessions are in memory
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	store, err := repository.NewCredentialFile(cfg.CredentialFile)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(ctx, store, auth.NewTokenManager(key), cfg.DefaultCode, cfg.SessionTTL, log)
}
