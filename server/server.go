// a stupid package name...
package server

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/liquidtune/tunevault/server/archive"
	"github.com/liquidtune/tunevault/server/archiver"
	"github.com/liquidtune/tunevault/server/config"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/kv"
	"github.com/liquidtune/tunevault/server/internal/library"
	"github.com/liquidtune/tunevault/server/internal/metadata"
	"github.com/liquidtune/tunevault/server/internal/transfer"
	"github.com/liquidtune/tunevault/server/logging"
	middlewares "github.com/liquidtune/tunevault/server/middleware"
	"github.com/liquidtune/tunevault/server/openid"
	"github.com/liquidtune/tunevault/server/rest"
	tunevaultRPC "github.com/liquidtune/tunevault/server/rpc"
	"github.com/liquidtune/tunevault/server/settings"
	"github.com/liquidtune/tunevault/server/status"
	"github.com/liquidtune/tunevault/server/user"
)

type serverConfig struct {
	bus      EventBus.Bus
	mdb      *kv.Store
	library  *library.Store
	history  *sql.DB
	archive  *archive.Handler
	archiver *archiver.Archiver
	settings *settings.Store
	orch     *acquisition.Orchestrator
}

func Run(ctx context.Context) error {
	conf := config.Instance()

	// ---- LOGGING ---------------------------------------------------
	logWriters := []io.Writer{os.Stdout}

	// file based logging
	if conf.Logging.EnableFileLogging {
		logger, err := logging.NewRotableLogger(conf.Logging.LogPath)
		if err != nil {
			return err
		}

		defer logger.Close()

		go func() {
			t := time.NewTicker(time.Hour * 24)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					if err := logger.Rotate(); err != nil {
						slog.Error("failed to rotate log file", slog.Any("err", err))
					}
				}
			}
		}()

		logWriters = append(logWriters, logger)
	}

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(logWriters...), &slog.HandlerOptions{
		Level: logging.ParseLevel(conf.Logging.Level),
	}))

	// make the new logger the default one with all the new writers
	slog.SetDefault(logger)
	// ----------------------------------------------------------------

	for _, dir := range []string{conf.Paths.DownloadPath, conf.Paths.LocalDatabasePath} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return err
		}
	}

	lib, err := library.Open(
		filepath.Join(conf.Paths.LocalDatabasePath, "library.db"),
		library.NewDirMedia(conf.Paths.DownloadPath),
	)
	if err != nil {
		return err
	}

	if _, err := lib.Reconcile(ctx); err != nil {
		slog.Warn("library reconcile failed", slog.Any("err", err))
	}

	history, err := archive.Open(filepath.Join(conf.Paths.LocalDatabasePath, "history.db"))
	if err != nil {
		return err
	}

	bus := EventBus.New()

	historyHandler, archiveService := archive.Container(history)
	var arch *archiver.Archiver
	if conf.AutoArchive {
		arch = archiver.New(archiveService)
		if err := arch.Register(bus); err != nil {
			return err
		}
	}

	settingsPath := cmp.Or(conf.Paths.SettingsPath, filepath.Join(conf.Paths.LocalDatabasePath, "settings.yml"))
	userSettings, err := settings.Load(settingsPath)
	if err != nil {
		return err
	}

	if err := openid.Configure(ctx); err != nil {
		return errors.Join(errors.New("failed to configure openid"), err)
	}

	client := backendClient(ctx, &conf.Backend)
	mdb := kv.NewStore()

	orch := acquisition.New(acquisition.Options{
		Library:     lib,
		Transfers:   transfer.NewController(client, conf.Backend.BaseURL, conf.Transfer.ProgressInterval),
		Info:        metadata.NewFetcher(client, conf.Backend.BaseURL),
		Registry:    mdb,
		Bus:         bus,
		MaxParallel: conf.Transfer.MaxParallel,
		Staging:     filepath.Join(conf.Paths.DownloadPath, ".staging"),
		Collection:  conf.Library.Collection,
	})

	// resume what the previous run left unfinished
	for _, loc := range kv.Restore(conf.Paths.LocalDatabasePath) {
		if _, err := orch.Submit(ctx, loc); err != nil {
			slog.Warn("failed to resume acquisition", slog.String("locator", loc), slog.Any("err", err))
		}
	}

	scfg := serverConfig{
		bus:      bus,
		mdb:      mdb,
		library:  lib,
		history:  history,
		archive:  historyHandler,
		archiver: arch,
		settings: userSettings,
		orch:     orch,
	}

	srv := newServer(scfg)

	// the archiver outlives ctx, tasks cancelled at shutdown are archived too
	archiverCtx, stopArchiver := context.WithCancel(context.WithoutCancel(ctx))
	if arch != nil {
		go arch.Run(archiverCtx)
	}

	go gracefulShutdown(ctx, srv, &scfg, stopArchiver)

	var (
		network = "tcp"
		address = fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port)
	)

	// support unix sockets
	if strings.HasPrefix(conf.Server.Host, "/") {
		network = "unix"
		address = conf.Server.Host
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		slog.Error("failed to listen", slog.String("err", err.Error()))
		return err
	}

	slog.Info("tunevault started", slog.String("address", address))

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("http server stopped", slog.String("err", err.Error()))
	}

	return nil
}

// backendClient authenticates against the download backend with client
// credentials when they are configured.
func backendClient(ctx context.Context, c *config.BackendConfig) *http.Client {
	if c.ClientId == "" || c.TokenURL == "" {
		return &http.Client{}
	}

	cc := clientcredentials.Config{
		ClientID:     c.ClientId,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
	}

	return cc.Client(context.WithoutCancel(ctx))
}

func newServer(c serverConfig) *http.Server {
	service := tunevaultRPC.Container(c.orch, c.library)
	rpc.Register(service)

	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.Use(corsMiddleware.Handler)
	// use in dev
	// r.Use(middleware.Logger)

	// Authentication routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", user.Login)
		r.Get("/logout", user.Logout)
	})

	// RPC handlers
	r.Route("/rpc", tunevaultRPC.ApplyRouter())

	// REST API handlers
	r.Route("/api/v1", func(r chi.Router) {
		rest.ApplyRouter(&rest.ContainerArgs{
			Orchestrator: c.orch,
			Library:      c.library,
			Bus:          c.bus,
		})(r)

		// History
		r.Route("/history", func(r chi.Router) {
			r.Use(middlewares.ApplyAuthenticationByConfig)
			c.archive.ApplyRouter()(r)
		})

		// Settings
		r.Route("/settings", func(r chi.Router) {
			r.Use(middlewares.ApplyAuthenticationByConfig)
			settings.NewHandler(c.settings, c.library.Usage).ApplyRouter()(r)
		})
	})

	// Status
	r.Route("/status", status.ApplyRouter(c.orch, c.library, config.Instance().Paths.DownloadPath))

	return &http.Server{Handler: r}
}

func gracefulShutdown(ctx context.Context, srv *http.Server, cfg *serverConfig, stopArchiver context.CancelFunc) {
	<-ctx.Done()
	slog.Info("shutdown signal received")

	// the session must be written before the running tasks are cancelled
	if err := cfg.mdb.Persist(config.Instance().Paths.LocalDatabasePath); err != nil {
		slog.Error("failed to persist session", slog.Any("err", err))
	}

	timeout, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	if err := cfg.orch.Shutdown(timeout); err != nil {
		slog.Warn("acquisitions did not stop in time", slog.Any("err", err))
	}

	// every task has published its terminal snapshot by now
	stopArchiver()
	if cfg.archiver != nil {
		select {
		case <-cfg.archiver.Done():
		case <-timeout.Done():
			slog.Warn("archiver did not drain in time")
		}
	}

	defer func() {
		cfg.library.Close()
		cfg.history.Close()
		srv.Shutdown(context.Background())
	}()
}
