package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/config"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/httpserver"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/notifier"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/tokenstore"
	"github.com/Skotchmaster/auth_service/pkg/db"
	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

const sweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := gdb.AutoMigrate(&models.User{}, &models.RefreshSession{}, &models.SingleUseToken{}); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	gormRepo := &repo.GormRepo{DB: gdb}
	codec := &tokens.Codec{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
	}
	store := &tokenstore.Store{Repo: gormRepo}

	var producer *events.Producer
	var mailer notifier.Notifier = &notifier.LogNotifier{AppURL: cfg.AppURL}
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		mailer = &notifier.KafkaNotifier{Producer: producer, AppURL: cfg.AppURL}
	}

	svc := &service.AuthService{
		Repo:     gormRepo,
		Tokens:   codec,
		Store:    store,
		Notifier: mailer,
	}

	e := echo.New()
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc, Producer: producer},
		Gate:        middleware.NewGate(codec, httpserver.PublicPrefixes),
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepExpired(logging.IntoContext(sweepCtx, logger), gormRepo)

	go func() {
		addr := ":" + strconv.Itoa(cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}

// sweepExpired periodically removes expired session and single-use token
// rows. Expired rows are already inert; this only bounds store growth.
func sweepExpired(ctx context.Context, r *repo.GormRepo) {
	l := logging.FromContext(ctx).With("svc", "auth.sweeper")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions, err := r.DeleteExpiredRefreshSessions(ctx)
			if err != nil {
				l.Error("sweep_failed", "table", "refresh_sessions", "error", err)
			}
			singles, err := r.DeleteExpiredSingleUseTokens(ctx)
			if err != nil {
				l.Error("sweep_failed", "table", "single_use_tokens", "error", err)
			}
			if sessions > 0 || singles > 0 {
				l.Info("sweep_done", "refresh_sessions", sessions, "single_use_tokens", singles)
			}
		}
	}
}
