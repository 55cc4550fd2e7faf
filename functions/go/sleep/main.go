package main

import (
	"context"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
)

const defaultSleep = 20 * time.Second

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.Async(handler))
}

// handler sleeps for the "duration" of the event (20s when absent) and
// completes from a timer, or fails once the invocation deadline passes.
func handler(ctx context.Context, event map[string]any, md *functionRuntimeInterface.Metadata, complete func(map[string]any, error)) {
	d := defaultSleep
	if raw, ok := event["duration"].(string); ok {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			complete(nil, err)
			return
		}
		d = parsed
	}

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			complete(map[string]any{"message": "Finished Sleeping", "slept": d.String()}, nil)
		case <-ctx.Done():
			complete(nil, ctx.Err())
		}
	}()
}
