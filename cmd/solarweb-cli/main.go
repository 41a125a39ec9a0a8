package main

import (
	"context"

	"solarweb-backend/cmd/solarweb-cli/commands"
	"solarweb-backend/lib/telemetry"
)

func main() {
	ctx := context.Background()
	telemetry.InitSlog(false)
	telemetry.SetupFromEnv(ctx, "solarweb-cli")
	commands.ExecuteContext(ctx)
}
