package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/relaychat/relay/internal/group"
	"github.com/relaychat/relay/internal/hub"
	"github.com/relaychat/relay/internal/store"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenDB(cfg.HistoryPath)
	if err != nil {
		slog.Error("history db open error", "path", cfg.HistoryPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	history, err := store.NewHistory(db)
	if err != nil {
		slog.Error("history init error", "error", err)
		os.Exit(1)
	}

	h := hub.NewHub(group.NewRegistry(), history, hub.Options{
		SendBuffer:   cfg.SendBuffer,
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	})
	go h.Run(ctx)

	r := chi.NewRouter()
	r.Get("/ws", wsHandler(ctx, h))
	r.Get("/health", healthHandler(h))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("relay starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down relay")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("relay stopped")
}

// wsHandler upgrades the connection and hands it to a per-session handler.
// The nickname handshake happens inside the session's read pump, not here.
func wsHandler(serverCtx context.Context, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Allow connections from any origin in development.
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.Error("websocket accept error",
				"remote", r.RemoteAddr,
				"error", err,
			)
			return
		}

		client := hub.NewClient(h, conn, r.RemoteAddr, serverCtx)
		go client.ReadPump()
		go client.WritePump()
	}
}

// healthHandler returns the current health status of the relay,
// including goroutine count and active session count.
func healthHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]int{
			"goroutines": runtime.NumGoroutine(),
			"sessions":   h.SessionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}
