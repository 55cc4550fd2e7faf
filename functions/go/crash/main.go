package main

import (
	"context"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/functionRuntimeInterface"
)

func main() {
	functionRuntimeInterface.Start("handler", functionRuntimeInterface.Sync(handler))
}

// this function panics on purpose. The runtime reports the panic as an
// invocation error and keeps serving.
func handler(ctx context.Context, event map[string]any, md *functionRuntimeInterface.Metadata) (map[string]any, error) {
	//sleep for 2 seconds
	time.Sleep(2 * time.Second)
	panic("crash")
}
