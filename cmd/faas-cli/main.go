package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goforj/godump"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/3s-rg-codes/faasruntime/pkg/emulator"
	"github.com/3s-rg-codes/faasruntime/pkg/utils"
)

var addressFlag = &cli.StringFlag{
	Name:    "address",
	Value:   "localhost:9001",
	Usage:   "address of the emulator",
	Aliases: []string{"a"},
}

var timeoutFlag = &cli.DurationFlag{
	Name:    "timeout",
	Usage:   "example: 30s, 1m, 1h",
	Aliases: []string{"t"},
	Value:   30 * time.Second,
}

// outcome is one line of the invoke summary.
type outcome struct {
	Call     int
	Duration time.Duration
	Payload  string `json:",omitempty"`
	Error    string `json:",omitempty"`
	Failed   bool
}

func main() {
	cmd := &cli.Command{
		Name:  "faas-cli",
		Usage: "talk to a function through the emulator",
		Commands: []*cli.Command{
			{
				Name:    "invoke",
				Aliases: []string{"i"},
				Usage:   "invoke the function",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Usage:   "event passed to the function, - reads stdin",
						Value:   "{}",
						Aliases: []string{"d"},
					},
					&cli.IntFlag{
						Name:  "repeat",
						Usage: "number of invocations",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "parallel",
						Usage: "invocations in flight at once",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "retries",
						Usage: "attempts per invocation on transport errors",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "dump every outcome instead of the payloads",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					data, err := readData(cmd.String("data"))
					if err != nil {
						return err
					}

					client := emulator.NewClient(cmd.String("address"), cmd.Duration("timeout"), newLogger(cmd))
					outcomes, err := Invoke(ctx, client, data,
						int(cmd.Int("repeat")),
						int(cmd.Int("parallel")),
						int(cmd.Int("retries")),
					)
					if cmd.Bool("dump") {
						godump.Dump(outcomes)
					} else {
						for _, o := range outcomes {
							if o.Failed {
								fmt.Printf("error: %v\n", o.Error)
								continue
							}
							fmt.Printf("%v\n", o.Payload)
						}
					}
					return err
				},
			},
			{
				Name:  "metrics",
				Usage: "print the emulator metrics",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					metrics, err := GetMetrics(ctx, cmd.String("address"), cmd.Duration("timeout"))
					if err != nil {
						return err
					}
					fmt.Print(metrics)
					return nil
				},
			},
		},
		// all sub commands inherit these flags
		Flags: []cli.Flag{
			addressFlag,
			timeoutFlag,
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log every request",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(cmd *cli.Command) *slog.Logger {
	config := utils.LogConfig{Level: slog.LevelError, Format: utils.LogFormatText}
	if cmd.Bool("verbose") {
		config = utils.LogConfig{Level: slog.LevelDebug, Format: utils.LogFormatDev}
	}
	// stdout only, so this cannot fail
	logger, _ := utils.NewLogger(config)
	return logger
}

func readData(data string) ([]byte, error) {
	if data != "-" {
		return []byte(data), nil
	}
	return io.ReadAll(os.Stdin)
}

// Invoke calls the function repeat times with at most parallel calls in
// flight. Outcomes are returned in call order; function errors are part of
// the outcomes while the returned error reports the first transport failure.
func Invoke(ctx context.Context, client *emulator.Client, data []byte, repeat, parallel, retries int) ([]outcome, error) {
	if repeat < 1 {
		repeat = 1
	}
	if parallel < 1 {
		parallel = 1
	}
	if retries < 1 {
		retries = 1
	}

	outcomes := make([]outcome, repeat)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i := 0; i < repeat; i++ {
		g.Go(func() error {
			start := time.Now()
			result, err := utils.CallWithRetry(ctx, func() (emulator.Result, error) {
				return client.Invoke(ctx, data)
			}, retries, 100*time.Millisecond)

			o := outcome{Call: i, Duration: time.Since(start)}
			switch {
			case err != nil:
				o.Failed = true
				o.Error = err.Error()
			case result.Failed():
				o.Failed = true
				o.Error = fmt.Sprintf("%s: %s", result.Error.ErrorType, result.Error.ErrorMessage)
			default:
				o.Payload = string(result.Payload)
			}

			mu.Lock()
			outcomes[i] = o
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	return outcomes, err
}

// GetMetrics fetches the Prometheus exposition of the emulator.
func GetMetrics(ctx context.Context, address string, timeout time.Duration) (string, error) {
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(address, "/")+"/metrics", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metrics request failed with status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
