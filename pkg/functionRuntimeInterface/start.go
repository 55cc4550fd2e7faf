package functionRuntimeInterface

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Start runs handler under name against the control plane configured in the
// process environment. It only returns on SIGTERM or SIGINT and exits the
// process with status 1 on any fatal error.
func Start(name string, handler Handler) {
	rt, err := New(FromProcess())
	if err != nil {
		slog.Error("Failed to create runtime", "error", err)
		os.Exit(1)
	}

	rt.Register(name, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
