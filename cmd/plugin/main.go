// Command plugin builds the scoreboard as a Nakama Go runtime module:
//
//	go build -buildmode=plugin -trimpath -o scoreboard.so ./cmd/plugin
package main

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/multitask/scoreboard/src/infra/nakama"
)

// InitModule is the entrypoint Nakama looks up in the plugin.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger, db, nk, initializer)
}

func main() {}
