package functionRuntimeInterface

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/3s-rg-codes/faasruntime/pkg/utils"
	"github.com/caarlos0/env/v11"
)

type runtimeSettings struct {
	runtimeAPI      string
	handlerSelector string
	handlerName     string

	LogLevel       slog.Level      `env:"FAAS_LOG_LEVEL" envDefault:"info"`
	LogFormat      utils.LogFormat `env:"FAAS_LOG_FORMAT" envDefault:"text"`
	LogFile        string          `env:"FAAS_LOG_FILE"`
	RequestTimeout time.Duration   `env:"FAAS_REQUEST_TIMEOUT" envDefault:"1h"`
}

func (s runtimeSettings) logConfig() utils.LogConfig {
	return utils.LogConfig{Level: s.LogLevel, Format: s.LogFormat, File: s.LogFile}
}

func loadRuntimeSettings(environment *Environment) (runtimeSettings, error) {
	var settings runtimeSettings
	if err := env.ParseWithOptions(&settings, env.Options{Environment: environment.Snapshot()}); err != nil {
		return settings, fmt.Errorf("%w: parse env: %w", ErrConfiguration, err)
	}

	runtimeAPI, ok := environment.Lookup(EnvRuntimeAPI)
	if !ok {
		return settings, &MissingEnvironmentVariableError{Key: EnvRuntimeAPI}
	}

	selector, ok := environment.Lookup(EnvHandler)
	if !ok {
		return settings, &MissingEnvironmentVariableError{Key: EnvHandler}
	}

	name, err := handlerNameFromSelector(selector)
	if err != nil {
		return settings, err
	}

	settings.runtimeAPI = runtimeAPI
	settings.handlerSelector = selector
	settings.handlerName = name
	return settings, nil
}

// handlerNameFromSelector returns everything after the first dot of a
// <module>.<handler> selector.
func handlerNameFromSelector(selector string) (string, error) {
	_, name, found := strings.Cut(selector, ".")
	if !found {
		return "", &InvalidHandlerSelectorError{Selector: selector}
	}
	return name, nil
}
