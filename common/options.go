package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/grafana/xk6-acceptance/env"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/otel"
)

const (
	DefaultMaxWaitTime       = 2 * time.Second
	DefaultModalPollInterval = 50 * time.Millisecond
	DefaultBlankURL          = "about:blank"
	DefaultResetMaxAttempts  = 10
	DefaultResetDialogPause  = 250 * time.Millisecond
	DefaultTimeout           = 30 * time.Second
)

// DriverOptions stores the driver configuration.
type DriverOptions struct {
	DefaultMaxWaitTime time.Duration
	ModalPollInterval  time.Duration
	BlankURL           string
	ResetMaxAttempts   int
	ResetDialogPause   time.Duration
	AppHost            string
	Timeout            time.Duration

	Headless       null.Bool
	ExecutablePath string
	Args           []string
	WSURL          string

	LogLevel          string
	Debug             bool
	LogCategoryFilter string

	TracesEndpoint string
	TracesProto    string
	TracesInsecure bool
}

// NewDriverOptions returns the default driver options.
func NewDriverOptions() *DriverOptions {
	return &DriverOptions{
		DefaultMaxWaitTime: DefaultMaxWaitTime,
		ModalPollInterval:  DefaultModalPollInterval,
		BlankURL:           DefaultBlankURL,
		ResetMaxAttempts:   DefaultResetMaxAttempts,
		ResetDialogPause:   DefaultResetDialogPause,
		Timeout:            DefaultTimeout,
		Headless:           null.NewBool(true, false),
		LogLevel:           "info",
		TracesProto:        "http",
	}
}

// Parse overrides the options with the values found through envLookup.
func (o *DriverOptions) Parse(envLookup env.LookupFunc, logger *log.Logger) error {
	for _, k := range []string{
		env.DefaultWait, env.ModalPollInterval, env.BlankURL,
		env.ResetMaxAttempts, env.ResetDialogPause, env.AppHost, env.Timeout,
		env.Headless, env.ExecutablePath, env.Args, env.WebSocketURL,
		env.LogLevel, env.Debug, env.LogCategoryFilter,
		env.TracesEndpoint, env.TracesProto, env.TracesInsecure,
	} {
		ev, ok := envLookup(k)
		if !ok {
			continue
		}
		ev = strings.TrimSpace(ev)
		if ev == "" {
			continue
		}
		if err := o.parse(k, ev); err != nil {
			return fmt.Errorf("parsing %s: %w", k, err)
		}
		logger.Debugf("DriverOptions:Parse", "%s=%q", k, ev)
	}

	return o.Validate()
}

func (o *DriverOptions) parse(key, value string) (err error) {
	switch key {
	case env.DefaultWait:
		o.DefaultMaxWaitTime, err = parseDuration(value)
	case env.ModalPollInterval:
		o.ModalPollInterval, err = parseDuration(value)
	case env.BlankURL:
		o.BlankURL = value
	case env.ResetMaxAttempts:
		o.ResetMaxAttempts, err = strconv.Atoi(value)
	case env.ResetDialogPause:
		o.ResetDialogPause, err = parseDuration(value)
	case env.AppHost:
		o.AppHost = strings.TrimRight(value, "/")
	case env.Timeout:
		o.Timeout, err = parseDuration(value)
	case env.Headless:
		var b bool
		if b, err = strconv.ParseBool(value); err == nil {
			o.Headless = null.BoolFrom(b)
		}
	case env.ExecutablePath:
		o.ExecutablePath = value
	case env.Args:
		o.Args = parseArgs(value)
	case env.WebSocketURL:
		o.WSURL = value
	case env.LogLevel:
		o.LogLevel = strings.ToLower(value)
	case env.Debug:
		o.Debug, err = strconv.ParseBool(value)
	case env.LogCategoryFilter:
		o.LogCategoryFilter = value
	case env.TracesEndpoint:
		o.TracesEndpoint = value
	case env.TracesProto:
		o.TracesProto = strings.ToLower(value)
	case env.TracesInsecure:
		o.TracesInsecure, err = strconv.ParseBool(value)
	}
	return err
}

// Validate checks the options are usable.
func (o *DriverOptions) Validate() error {
	switch {
	case o.DefaultMaxWaitTime < 0:
		return fmt.Errorf("default wait must not be negative, got %s", o.DefaultMaxWaitTime)
	case o.ModalPollInterval <= 0:
		return fmt.Errorf("modal poll interval must be positive, got %s", o.ModalPollInterval)
	case o.ResetMaxAttempts < 1:
		return fmt.Errorf("reset max attempts must be at least 1, got %d", o.ResetMaxAttempts)
	case o.ResetDialogPause < 0:
		return fmt.Errorf("reset dialog pause must not be negative, got %s", o.ResetDialogPause)
	case o.BlankURL == "":
		return fmt.Errorf("blank URL must not be empty")
	}
	return nil
}

// TracesConfig returns the exporter settings for driver spans.
func (o *DriverOptions) TracesConfig() otel.Config {
	return otel.Config{Proto: o.TracesProto, Endpoint: o.TracesEndpoint, Insecure: o.TracesInsecure}
}

// parseDuration accepts Go durations ("1.5s") and bare numbers of seconds.
func parseDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseArgs(value string) []string {
	var args []string
	for _, a := range strings.Split(value, ",") {
		if a = strings.TrimSpace(a); a != "" {
			args = append(args, a)
		}
	}
	return args
}
