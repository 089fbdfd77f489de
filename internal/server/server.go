package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tweetledger/internal"
	"tweetledger/internal/server/handler"
	"tweetledger/pkg"
	"tweetledger/pkg/database"
	"tweetledger/pkg/journal"
	"tweetledger/pkg/ledger"
	"tweetledger/pkg/program"
)

// App holds the opened ledger and its collaborators.
type App struct {
	Cfg       *internal.Config
	Log       *zap.Logger
	Store     database.Store
	Ledger    *ledger.Ledger
	Journal   *journal.Journal
	ProgramID pkg.PublicKey
}

// Open builds the logger, opens the store and the journal, and deploys the
// tweet program.
func Open(cfg *internal.Config) (*App, error) {
	log, err := internal.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	ledger.SetLogger(log.Named("ledger"))
	program.SetLogger(log.Named("program"))
	journal.SetLogger(log.Named("journal"))

	programID, err := cfg.ProgramID()
	if err != nil {
		return nil, err
	}

	log.Info("opening store", zap.String("driver", cfg.Database.Driver), zap.String("path", cfg.Database.Path))
	store, err := database.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		Cfg:       cfg,
		Log:       log,
		Store:     store,
		Ledger:    ledger.New(store, ledger.SystemClock{}, program.New(programID)),
		Journal:   j,
		ProgramID: programID,
	}, nil
}

// Close releases the journal and the store and flushes the logger. Every
// step runs even when an earlier one fails.
func (a *App) Close() error {
	err := multierr.Combine(a.Journal.Close(), a.Store.Close())
	// Sync reports EINVAL when stderr is a terminal.
	_ = a.Log.Sync()
	return err
}

// Import rebuilds the empty ledger from the journal at path. Once the import
// has committed, its entries are appended to the app's own journal unless
// path is that journal.
func (a *App) Import(ctx context.Context, path string) (int, error) {
	n, err := journal.Import(ctx, path, a.Ledger)
	if err != nil || path == a.Cfg.Journal.Path {
		return n, err
	}
	if _, err := journal.Replay(ctx, path, a.Journal.Append); err != nil {
		return n, err
	}
	return n, nil
}

// Handler returns the HTTP API of the app.
func (a *App) Handler() http.Handler {
	h := &handler.Handler{
		Ledger:    a.Ledger,
		Journal:   a.Journal,
		Cfg:       a.Cfg,
		ProgramID: a.ProgramID,
		Log:       a.Log.Named("http"),
	}
	return h.Routes()
}

// Run serves the API until SIGINT or SIGTERM.
func Run(cfg *internal.Config) error {
	app, err := Open(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Info("server running", zap.String("addr", srv.Addr), zap.Stringer("program", app.ProgramID))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
