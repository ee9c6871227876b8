// Command echo-server runs an illustrative wsforge server: a plain HTTP
// handler for everything outside /ws, and a WebSocket echo handler at /ws.
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
	"github.com/joho/godotenv"

	"wsforge/httpmsg"
	"wsforge/server"
	"wsforge/websocket"
)

// DemoConfig is populated from the environment (and an optional .env
// file) via godotenv.Load followed by env.Parse.
type DemoConfig struct {
	BindAddress string `env:"BIND_ADDRESS" envDefault:""`
	Port        int    `env:"PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"0"`
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

	var metrics *server.Metrics
	var metricsAddr string
	if cfg.MetricsPort != 0 {
		metrics = server.NewMetrics("wsforge_echo")
		metricsAddr = fmt.Sprintf(":%d", cfg.MetricsPort)
	}

	srv := server.New(server.Config{
		BindAddress: cfg.BindAddress,
		Port:        cfg.Port,
		Handler:     helloHandler,
		WebSocketSelector: func(path string) (websocket.Handler, bool) {
			if path != "/ws" {
				return nil, false
			}
			return echoHandler, true
		},
		Metrics:     metrics,
		MetricsAddr: metricsAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		os.Exit(1)
	}
	slog.Info("echo-server listening", slog.String("addr", srv.Addr().String()))

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("shutdown error", slog.String("error", err.Error()))
	}
}

func helloHandler(ctx context.Context, req *httpmsg.Request) (*httpmsg.Response, error) {
	return httpmsg.NewResponse(200, "text/plain", []byte("wsforge echo-server: connect to /ws\n")), nil
}

func echoHandler(ctx context.Context, req *httpmsg.Request, conn *websocket.Connection) {
	for {
		msg, err := conn.ReceiveMessage(ctx)
		if err != nil {
			return
		}
		switch msg.Kind {
		case websocket.MessageText:
			if err := conn.SendText("Echo: " + string(msg.Data)); err != nil {
				return
			}
		case websocket.MessageBinary:
			if err := conn.SendBinary(msg.Data); err != nil {
				return
			}
		case websocket.MessageClose:
			_ = conn.Close(websocket.CloseNormal, "")
			return
		}
	}
}
