// Package history persists the visible conversation of every user. Storage is
// append-only: messages are never rewritten or deleted.
package history

import (
	"context"
	"fmt"

	"agrosmi/app/config"
	"agrosmi/app/service/conversation"

	"github.com/samber/do"
)

type Store interface {
	// LoadRecent returns the newest limit messages of a user, oldest first
	LoadRecent(ctx context.Context, userID string, limit int) ([]conversation.Message, error)
	Append(ctx context.Context, userID string, messages ...conversation.Message) error
}

func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	switch cfg.Storage.Driver {
	case "sqlite":
		return OpenSQLite(appCtx, cfg.Storage.Path)
	case "file":
		return NewFileStore(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
