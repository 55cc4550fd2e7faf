package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
)

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.Sync(handler))
}

func handler(ctx context.Context, event map[string]any, md *functionRuntimeInterface.Metadata) (map[string]any, error) {
	// Simulate workload between 100ms and 2 seconds
	work := time.Duration(rand.Intn(1900)+100) * time.Millisecond
	if remaining := md.RemainingTime(); remaining < work {
		work = remaining
	}

	select {
	case <-time.After(work):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{
		"requestId": md.RequestID,
		"workMs":    work.Milliseconds(),
	}, nil
}
