package main

import (
	"context"
	"perdisweb-backend/cmd/perdis-cli/commands"
	"perdisweb-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "perdis-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
