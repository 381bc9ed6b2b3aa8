package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/pishro-capital/ledger-core/internal/bot"
	"github.com/pishro-capital/ledger-core/internal/notify"
	"github.com/pishro-capital/ledger-core/internal/router"
	"github.com/pishro-capital/ledger-core/pkg/database"
	"github.com/pishro-capital/ledger-core/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting ledger-core bot")

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		sugar.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		sugar.Fatalf("telegram: %v", err)
	}
	sugar.Infow("authorized", "account", api.Self.UserName)

	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := router.EnsureSchema(ctx, sqlxDB); err != nil {
		sugar.Fatalf("schema: %v", err)
	}

	base := router.Build(sqlxDB, nil, sugar)
	notifier := notify.NewTelegram(api, base.UserService, sugar)
	deps := router.Build(sqlxDB, notifier, sugar)

	b := bot.New(api, deps.UserService, deps.LedgerService, deps.Reporter, sugar)

	sugar.Info("bot is running; press Ctrl+C to stop")
	b.Run(ctx)

	sugar.Info("goodbye")
}
