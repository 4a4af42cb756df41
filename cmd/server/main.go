// Command server runs the couple diary web application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"couple-diary/internal/attachments"
	"couple-diary/internal/auth"
	"couple-diary/internal/config"
	"couple-diary/internal/diary"
	"couple-diary/internal/handlers"
	"couple-diary/internal/logging"
	"couple-diary/internal/storage"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, logOut io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if cfg.SecretGenerated {
		logger.Warn("SESSION_SECRET is not set; using a random secret, sessions will not survive a restart")
	}

	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := newAttachmentStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("attachment store: %w", err)
	}

	svc := diary.NewService(db, files, logger)
	sessions := auth.NewSessionManager(db, cfg.SessionSecret, cfg.SessionTTL)
	h := handlers.NewHandlers(svc, sessions, logger, handlers.Options{
		TemplateDir:    cfg.TemplateDir,
		SecureCookie:   cfg.SecureCookie,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.Chain(handlers.RequestLogger(logger), handlers.RecoverPanic(logger), handlers.SecureHeaders)(setupRouter(h, cfg.StaticDir)),
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeSessions(ctx, db, purgeInterval, logger)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "config", cfg.String())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	wg.Wait()
	return nil
}

// setupRouter registers every route of the application.
func setupRouter(h *handlers.Handlers, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("GET /uploads/{name}", h.ServeUpload)

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /signup", h.SignupForm)
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /logout", h.Logout)

	protected := func(fn http.HandlerFunc) http.Handler {
		return h.AuthMiddleware(fn)
	}
	mux.Handle("GET /diary", protected(h.ListEntries))
	mux.Handle("GET /diary/moods", protected(h.Moods))
	mux.Handle("GET /new-entry", protected(h.NewEntryForm))
	mux.Handle("POST /diary/new", protected(h.CreateEntry))
	mux.Handle("GET /diary/{id}", protected(h.EntryDetail))
	mux.Handle("GET /diary/edit/{id}", protected(h.EditEntryForm))
	mux.Handle("POST /diary/edit/{id}", protected(h.UpdateEntry))
	mux.Handle("POST /diary/delete/{id}", protected(h.DeleteEntry))

	return mux
}

func newAttachmentStore(ctx context.Context, cfg *config.Config) (attachments.Store, error) {
	if cfg.StorageBackend == config.BackendS3 {
		return attachments.NewS3Store(ctx, attachments.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return attachments.NewDiskStore(cfg.UploadDir)
}

// purgeSessions deletes expired sessions every interval until ctx is done.
func purgeSessions(ctx context.Context, db *storage.DB, every time.Duration, logger *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.CleanExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("purge expired sessions", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
