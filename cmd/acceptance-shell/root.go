package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grafana/xk6-acceptance/browserprocess"
	"github.com/grafana/xk6-acceptance/common"
	"github.com/grafana/xk6-acceptance/env"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/osext"
	"github.com/grafana/xk6-acceptance/otel"
	acctrace "github.com/grafana/xk6-acceptance/trace"
)

const version = "0.1.0"

type sessionFactoryFunc func(*common.DriverOptions, *log.Logger) common.SessionFactory

type rootFlags struct {
	wsURL    string
	appHost  string
	headful  bool
	logLevel string
	noColor  bool
}

func newRootCmd(in io.Reader, out io.Writer, lookup env.LookupFunc, newSessionFactory sessionFactoryFunc) *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "acceptance-shell",
		Short: "Drive a browser through the acceptance driver from the command line.",
		Long: "Reads one command per line, type help for the list.\n" +
			"The driver is configured from the K6_ACCEPTANCE_* environment variables, flags take precedence.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return run(ctx, in, out, cmd.ErrOrStderr(), lookup, flags, newSessionFactory)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := cmd.Flags()
	pf.StringVar(&flags.wsURL, "ws-url", "", "connect to the browser listening on this DevTools URL instead of launching one")
	pf.StringVar(&flags.appHost, "app-host", "", "base URL relative visits are resolved against")
	pf.BoolVar(&flags.headful, "headful", false, "show the browser window")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

func run(
	ctx context.Context, in io.Reader, out, errOut io.Writer, lookup env.LookupFunc,
	flags rootFlags, newSessionFactory sessionFactoryFunc,
) error {
	base := logrus.New()
	base.SetOutput(errOut)
	logger := log.New(base, false, nil)

	opts := common.NewDriverOptions()
	if err := opts.Parse(lookup, logger); err != nil {
		return fmt.Errorf("parsing driver options: %w", err)
	}
	flags.apply(opts)

	logger = log.New(base, opts.Debug, nil)
	if err := logger.SetLevel(opts.LogLevel); err != nil {
		return err //nolint:wrapcheck
	}
	if err := logger.SetCategoryFilter(opts.LogCategoryFilter); err != nil {
		return err //nolint:wrapcheck
	}

	// hooks close the driver, flush traces and kill leftover browsers
	defer func() {
		for _, name := range osext.RunExitHooks() {
			logger.Debugf("shell", "ran exit hook %q", name)
		}
	}()
	osext.RegisterExitHook("browser processes", func() {
		if n := browserprocess.ForceProcessShutdown(context.Background()); n > 0 {
			logger.Warnf("shell", "killed %d leftover browser processes", n)
		}
	})

	tp, err := otel.NewProvider(ctx, opts.TracesConfig())
	if err != nil {
		return fmt.Errorf("setting up traces: %w", err)
	}
	osext.RegisterExitHook("traces provider", func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Errorf("shell", "flushing traces: %v", err)
		}
	})

	driver := common.NewDriver(opts, newSessionFactory(opts, logger), logger,
		common.WithTracer(acctrace.NewTracer(logger, tp, map[string]string{"client": "acceptance-shell"})),
	)

	return newShell(driver, out, flags.noColor).run(ctx, in)
}

func (f rootFlags) apply(opts *common.DriverOptions) {
	if f.wsURL != "" {
		opts.WSURL = f.wsURL
	}
	if f.appHost != "" {
		opts.AppHost = strings.TrimRight(f.appHost, "/")
	}
	if f.headful {
		opts.Headless.SetValid(false)
	}
	if f.logLevel != "" {
		opts.LogLevel = f.logLevel
	}
}
