package mylog

import (
	"context"
	"log/slog"
	"os"

	"agrosmi/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// alertKey marks records that must reach the operators chat regardless of level.
const alertKey = "telegram"

// Alert tags a record for the telegram handler.
func Alert() slog.Attr {
	return slog.Bool(alertKey, true)
}

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			shouldAlert,
		)
	}

	slog.SetDefault(slog.New(router.Handler()).With("service", "agrosmi"))

	return nil
}

func shouldAlert(_ context.Context, r slog.Record) bool {
	if r.Level >= slog.LevelError {
		return true
	}

	alert := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == alertKey {
			alert = attr.Value.Kind() == slog.KindBool && attr.Value.Bool()
			return false
		}

		return true
	})

	return alert
}
