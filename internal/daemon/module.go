package daemon

import (
	"context"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/replykit/internal/api"
	"github.com/matheus3301/replykit/internal/assist"
	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/chatdb"
	"github.com/matheus3301/replykit/internal/config"
	"github.com/matheus3301/replykit/internal/directory"
	"github.com/matheus3301/replykit/internal/llm"
	"github.com/matheus3301/replykit/internal/lock"
	"github.com/matheus3301/replykit/internal/logging"
	"github.com/matheus3301/replykit/internal/status"
	"github.com/matheus3301/replykit/internal/store"
)

// Params holds the resolved configuration passed to the fx module.
type Params struct {
	Config *config.Config
	// Logger replaces the file logger when set (tests).
	Logger *zap.Logger
	// Completer replaces the configured generative backend when set (tests).
	Completer assist.Completer
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideDirectory,
			provideMessageStore,
			provideCompleter,
			provideAssist,
			api.NewAssistant,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(p.Config.LogPath, "replykitd")
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	dir := filepath.Dir(p.Config.ContextDBPath)
	logger.Info("acquiring data dir lock", zap.String("dir", dir))
	l, err := lock.Acquire(dir, p.Config.SocketPath)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired", zap.String("path", l.Path()))
	return l, nil
}

// The lock parameter orders the store after the lock: a second daemon
// must fail before it touches the database.
func provideStore(p Params, logger *zap.Logger, _ *lock.Lock) (*store.DB, error) {
	dbPath := p.Config.ContextDBPath
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("context store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideDirectory(p Params, m *status.Machine, b *bus.Bus, logger *zap.Logger) *directory.Cache {
	dir := p.Config.AddressBookDir
	return directory.New(func() []directory.Source { return directory.Discover(dir) }, m, b, logger.Named("directory"))
}

func provideMessageStore(p Params, dir *directory.Cache, logger *zap.Logger) *chatdb.Store {
	return chatdb.New(p.Config.ChatDBPath, dir, logger.Named("chatdb"))
}

func provideCompleter(p Params, logger *zap.Logger) (assist.Completer, error) {
	if p.Completer != nil {
		return p.Completer, nil
	}
	return llm.New(context.Background(), p.Config.Generation, logger.Named("llm"))
}

func provideAssist(p Params, db *store.DB, messages *chatdb.Store, dir *directory.Cache, c assist.Completer, b *bus.Bus, logger *zap.Logger) *assist.Service {
	return assist.NewService(db, messages, dir, c, b, logger.Named("assist"), assist.Options{
		SuggestionCount: p.Config.Generation.SuggestionCount,
		Temperature:     p.Config.Generation.Temperature,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, messages *chatdb.Store, dir *directory.Cache, logger *zap.Logger) {
	warmCtx, cancelWarm := context.WithCancel(context.Background())
	warmed := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			// Warm the contact directory so the first thread listing does not wait on it.
			go func() {
				defer close(warmed)
				if err := dir.Load(warmCtx); err != nil {
					logger.Warn("directory warm-up interrupted", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelWarm()
			dir.Close()
			<-warmed
			srv.Stop(ctx)
			if err := messages.Close(); err != nil {
				logger.Warn("error closing message store", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing context store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
