package client

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/driftline/chatkit/internal/config"
	"github.com/driftline/chatkit/internal/datadir"
	"github.com/driftline/chatkit/internal/delivery"
	"github.com/driftline/chatkit/internal/dispatch"
	"github.com/driftline/chatkit/internal/lock"
	"github.com/driftline/chatkit/internal/logging"
	"github.com/driftline/chatkit/internal/store"
	intsync "github.com/driftline/chatkit/internal/sync"
	"github.com/driftline/chatkit/transport"
)

// params holds the resolved configuration passed to the fx module.
type params struct {
	cfg  *config.Config
	tp   transport.Transport
	atts transport.Attachments
}

// module composes all providers and lifecycle hooks for one client.
func module(p params, target *Client) fx.Option {
	return fx.Module("chatkit",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideStore,
			provideHub,
			provideMachine,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
		fx.Populate(&target.db, &target.hub, &target.machine, &target.engine, &target.logger),
		fx.NopLogger,
	)
}

func provideLogger(p params) (*zap.Logger, error) {
	return logging.New(p.cfg.LogPath(), p.cfg.UserID, p.cfg.LogLevel)
}

func provideLock(p params, logger *zap.Logger) (*lock.Lock, error) {
	dir := p.cfg.DataDir
	if dir == "" {
		if err := datadir.Ensure(p.cfg.UserID); err != nil {
			return nil, err
		}
		dir = datadir.Dir(p.cfg.UserID)
	}
	logger.Info("acquiring data dir lock", zap.String("dir", dir))
	l, err := lock.Acquire(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(p params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.cfg.DBPath()
	db, err := store.Open(dbPath, store.Options{
		SortByServerTime: p.cfg.SortMessageByServerTime,
		SelfUserID:       p.cfg.UserID,
	})
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHub(logger *zap.Logger) *dispatch.Hub {
	return dispatch.New(logger)
}

func provideMachine(db *store.DB, hub *dispatch.Hub, logger *zap.Logger) *delivery.Machine {
	return delivery.NewMachine(db, hub, logger)
}

func provideEngine(p params, db *store.DB, machine *delivery.Machine, hub *dispatch.Hub, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, p.tp, p.atts, machine, hub, logger, intsync.Config{
		SelfUserID:      p.cfg.UserID,
		AutoDeliveryAck: p.cfg.AutoDeliveryAck,
	})
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, hub *dispatch.Hub, engine *intsync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			logger.Info("client started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			hub.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
