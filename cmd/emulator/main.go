package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/3s-rg-codes/faasruntime/pkg/emulator"
	"github.com/3s-rg-codes/faasruntime/pkg/utils"
)

func main() {
	cmd := &cli.Command{
		Name:      "emulator",
		Usage:     "run a local control plane for one function",
		ArgsUsage: "[-- bootstrap command and arguments]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Value:   "localhost:9001",
				Usage:   "address the runtime API and invoke endpoint listen on",
				Sources: cli.EnvVars("EMULATOR_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "function-name",
				Value:   "function",
				Usage:   "name reported to the function",
				Sources: cli.EnvVars("AWS_LAMBDA_FUNCTION_NAME"),
			},
			&cli.StringFlag{
				Name:    "handler",
				Value:   "bootstrap.handler",
				Usage:   "handler selector passed to the bootstrap command",
				Sources: cli.EnvVars("_HANDLER"),
			},
			&cli.IntFlag{
				Name:    "memory",
				Value:   128,
				Usage:   "memory size in MB reported to the function",
				Sources: cli.EnvVars("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   30 * time.Second,
				Usage:   "invocation timeout, example: 30s, 1m",
				Sources: cli.EnvVars("EMULATOR_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "log format (text, json or dev)",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "log file path (defaults to stdout)",
				Sources: cli.EnvVars("LOG_FILE"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logConfig, err := utils.ParseLogConfig(cmd.String("log-level"), cmd.String("log-format"), cmd.String("log-file"))
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(logConfig)
	if err != nil {
		return err
	}

	config := emulator.Config{
		Address:      cmd.String("address"),
		FunctionName: cmd.String("function-name"),
		Timeout:      cmd.Duration("timeout"),
	}
	logger.Info("Current configuration", "config", config)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := emulator.NewServer(config, logger)

	bootstrap := cmd.Args().Slice()
	if len(bootstrap) == 0 {
		return srv.Start(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		return runBootstrap(ctx, logger, bootstrap, functionEnvironment(cmd, config))
	})
	return g.Wait()
}

// runBootstrap runs the function process next to the emulator. The process
// exiting on its own ends the emulator too.
func runBootstrap(ctx context.Context, logger *slog.Logger, args []string, environment []string) error {
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Env = append(os.Environ(), environment...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = 5 * time.Second

	logger.Info("Starting bootstrap", "command", strings.Join(args, " "))
	err := c.Run()
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		err = errors.New("exited")
	}
	return fmt.Errorf("bootstrap %s: %w", args[0], err)
}

func functionEnvironment(cmd *cli.Command, config emulator.Config) []string {
	vars := map[string]string{
		"AWS_LAMBDA_RUNTIME_API":          config.Address,
		"_HANDLER":                        cmd.String("handler"),
		"AWS_LAMBDA_FUNCTION_NAME":        config.FunctionName,
		"AWS_LAMBDA_FUNCTION_VERSION":     "$LATEST",
		"AWS_LAMBDA_FUNCTION_MEMORY_SIZE": fmt.Sprint(cmd.Int("memory")),
		"AWS_LAMBDA_LOG_GROUP_NAME":       "/aws/lambda/" + config.FunctionName,
		"AWS_LAMBDA_LOG_STREAM_NAME":      time.Now().Format("2006/01/02") + "/[$LATEST]emulator",
		"AWS_REGION":                      "local",
		"FAAS_LOG_LEVEL":                  cmd.String("log-level"),
		"FAAS_LOG_FORMAT":                 cmd.String("log-format"),
	}

	environment := make([]string, 0, len(vars))
	for k, v := range vars {
		environment = append(environment, k+"="+v)
	}
	return environment
}
