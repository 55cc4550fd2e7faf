package main

import (
	"context"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
)

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.HandlerFunc(handler))
}

// handler returns the event bytes unchanged, JSON or not.
func handler(ctx context.Context, payload []byte, md *functionRuntimeInterface.Metadata) ([]byte, error) {
	return payload, nil
}
