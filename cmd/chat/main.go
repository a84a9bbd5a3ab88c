package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/cli"
	clientreply "github.com/zhouzirui/calm-companion/backend/internal/client/reply"
	"github.com/zhouzirui/calm-companion/backend/internal/config"
	controller "github.com/zhouzirui/calm-companion/backend/internal/controller/chat"
	"github.com/zhouzirui/calm-companion/backend/internal/logging"
	"github.com/zhouzirui/calm-companion/backend/internal/service/reply"
	"github.com/zhouzirui/calm-companion/backend/internal/store/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	flags := pflag.NewFlagSet("chat", pflag.ExitOnError)
	flags.String("reply-url", "", "reply server base URL; empty string keeps replies local")
	flags.Duration("reply-timeout", 0, "timeout for one remote reply attempt")
	flags.String("driver", "", "history backend: memory, file, sqlite or postgres")
	flags.String("dsn", "", "history location: directory, sqlite path or postgres URL")
	flags.String("level", "", "log level")
	offline := flags.Bool("offline", false, "never call the reply server")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 日志写到 stderr，并默认使用 console 格式，避免与对话输出混在一起。
	format := cfg.Log.Format
	if os.Getenv("LOG_FORMAT") == "" {
		format = "console"
	}
	logger, err := logging.New(cfg.Log.Level, format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file loaded, using process environment only", zap.Error(envErr))
	}

	backend, err := conversation.OpenBackend(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		logger.Fatal("failed to open history store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	store := conversation.NewStore(backend, logger)
	defer store.Close()

	var remote controller.Replier
	if !*offline && cfg.Client.ReplyURL != "" {
		remote = clientreply.New(cfg.Client.ReplyURL,
			clientreply.WithTimeout(cfg.Client.ReplyTimeout),
			clientreply.WithLogger(logger),
		)
	}

	printer := cli.NewPrinter(os.Stdout)
	ctrl := controller.New(store, remote, reply.NewService(), printer, controller.WithLogger(logger))

	if err := cli.Run(ctx, os.Stdin, printer, ctrl); err != nil {
		logger.Error("input error", zap.Error(err))
	}
}
