package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/config"
	"github.com/nomance-app/nomance/internal/database"
	"github.com/nomance-app/nomance/internal/logging"
	"github.com/nomance-app/nomance/internal/repository"
	"github.com/nomance-app/nomance/internal/repository/memory"
	postgresrepo "github.com/nomance-app/nomance/internal/repository/postgres"
	"github.com/nomance-app/nomance/internal/service"
	"github.com/nomance-app/nomance/internal/transport/http/handlers"
	"github.com/nomance-app/nomance/internal/transport/ws"
	jww "github.com/spf13/jwalterweatherman"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guestID, err := uuid.Parse(cfg.GuestUserID)
	if err != nil {
		jww.FATAL.Fatalf("invalid GUEST_USER_ID: %v", err)
	}

	repos, closeDB, err := openRepositories(ctx, cfg)
	if err != nil {
		jww.FATAL.Fatal(err)
	}
	defer closeDB()

	// Services
	authService := service.NewAuthService(repos.users, cfg.JWTSecret)
	matchService := service.NewMatchService(repos.matches, repos.users)
	messageService := service.NewMessageService(repos.messages, matchService)

	// Realtime
	hub := ws.NewHub()
	messageService.SetNotifier(ws.NewHubNotifier(hub))
	wsHandler := ws.ServeWS(ctx, hub, cfg.JWTSecret, guestID, ws.MatchAuthorizer{Matches: matchService})

	router := handlers.NewRouter(handlers.Services{
		Auth:     authService,
		Matches:  matchService,
		Messages: messageService,
	}, cfg.JWTSecret, guestID, wsHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		jww.INFO.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		jww.ERROR.Printf("server: %v", err)
		os.Exit(1)
	}
	jww.INFO.Println("Server stopped")
}

type repositories struct {
	users    repository.UserRepository
	matches  repository.MatchRepository
	messages repository.MessageRepository
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	if cfg.Storage == "memory" {
		jww.WARN.Println("Using in-memory storage; data is lost on exit")
		store := memory.New()
		return &repositories{
			users:    store.Users(),
			matches:  store.Matches(),
			messages: store.Messages(),
		}, func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	jww.INFO.Println("Connected to database")

	return &repositories{
		users:    postgresrepo.NewUserRepo(pool),
		matches:  postgresrepo.NewMatchRepo(pool),
		messages: postgresrepo.NewMessageRepo(pool),
	}, pool.Close, nil
}
