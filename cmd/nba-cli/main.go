package main

import (
	"context"
	"log/slog"
	"os"

	"nbastats-backend/cmd/nba-cli/commands"
	"nbastats-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()

	tel, err := telemetry.SetupFromEnv(ctx, "nba-cli")
	if err == nil {
		telemetry.InstrumentPerfStats(ctx)
		defer tel.Shutdown(ctx)
	} else if !os.IsNotExist(err) {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	commands.ExecuteContext(ctx)
}
