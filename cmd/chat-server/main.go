// Command chat-server is an illustrative demo chat application: every
// connected WebSocket client's text messages are broadcast to every
// connected client, the sender included. It exists only to show server.Registry in use, per
// the library's explicit framing of a chat demo as illustrative rather
// than a supported feature.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"wsforge/httpmsg"
	"wsforge/server"
	"wsforge/websocket"
)

// DemoConfig mirrors cmd/echo-server's environment-driven configuration.
type DemoConfig struct {
	BindAddress string `env:"BIND_ADDRESS" envDefault:""`
	Port        int    `env:"PORT" envDefault:"8081"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.String("error", err.Error()))
	}
	var cfg DemoConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse config: %v\n", err)
		os.Exit(1)
	}

	registry := server.NewRegistry()

	srv := server.New(server.Config{
		BindAddress: cfg.BindAddress,
		Port:        cfg.Port,
		Handler: func(ctx context.Context, req *httpmsg.Request) (*httpmsg.Response, error) {
			return httpmsg.NewResponse(200, "text/plain", []byte("wsforge chat-server: connect to /chat\n")), nil
		},
		WebSocketSelector: func(path string) (websocket.Handler, bool) {
			if path != "/chat" {
				return nil, false
			}
			return chatHandler(registry), true
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		os.Exit(1)
	}
	slog.Info("chat-server listening", slog.String("addr", srv.Addr().String()))

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown error", slog.String("error", err.Error()))
	}
}

func chatHandler(registry *server.Registry) websocket.Handler {
	return func(ctx context.Context, req *httpmsg.Request, conn *websocket.Connection) {
		sessionID := uuid.NewString()
		registry.Add(&server.RegisteredConnection{
			SessionID:  sessionID,
			RemoteAddr: req.Header.Get("X-Forwarded-For"),
			Path:       req.Path,
			Send:       conn.SendText,
		})
		defer registry.Remove(sessionID)

		for {
			msg, err := conn.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			switch msg.Kind {
			case websocket.MessageText:
				registry.Broadcast(string(msg.Data))
			case websocket.MessageClose:
				_ = conn.Close(websocket.CloseNormal, "")
				return
			}
		}
	}
}
