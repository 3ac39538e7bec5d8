// Package browser provides an entry point to the acceptance driver extension.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"github.com/grafana/xk6-acceptance/browserprocess"
	"github.com/grafana/xk6-acceptance/chromium"
	"github.com/grafana/xk6-acceptance/common"
	"github.com/grafana/xk6-acceptance/env"
	"github.com/grafana/xk6-acceptance/k6ext"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/osext"
	"github.com/grafana/xk6-acceptance/otel"
	acctrace "github.com/grafana/xk6-acceptance/trace"

	k6common "go.k6.io/k6/js/common"
	k6modules "go.k6.io/k6/js/modules"
)

const version = "0.1.0"

type (
	// RootModule is the global module instance that will create module
	// instances for each VU.
	RootModule struct {
		initOnce       sync.Once
		tracesProvider *otel.Provider
	}

	// JSModule exposes the properties available to the JS script.
	JSModule struct {
		Driver  *goja.Object `js:"driver"`
		Version string       `js:"version"`
	}

	// ModuleInstance represents an instance of the JS module.
	ModuleInstance struct {
		mod *JSModule
	}
)

// moduleVU carries module specific VU information.
//
// It gives the JS mappings access to the VU's driver.
type moduleVU struct {
	k6modules.VU

	*vuDriver
}

// vuDriver is the driver of a VU. It is closed once the VU context is done.
type vuDriver struct {
	driver    *common.Driver
	watchOnce sync.Once
}

func (vu moduleVU) Context() context.Context {
	ctx := vu.VU.Context()
	if st := vu.State(); st != nil {
		// browsers launched by this VU are killed together
		ctx = browserprocess.WithOwner(ctx, "vu-"+strconv.FormatUint(st.VUID, 10))
	}
	return ctx
}

// acceptanceDriver returns the VU's driver. At the first call made while
// the VU runs it starts closing the driver when the VU is done.
func (vu moduleVU) acceptanceDriver() *common.Driver {
	if vu.State() != nil {
		vu.watchOnce.Do(func() {
			done := vu.VU.Context().Done()
			go func() {
				<-done
				_ = vu.driver.Close(context.Background())
			}()
		})
	}
	return vu.driver
}

var (
	_ k6modules.Module   = &RootModule{}
	_ k6modules.Instance = &ModuleInstance{}
)

// New returns a pointer to a new RootModule instance.
func New() *RootModule {
	return &RootModule{}
}

// NewModuleInstance implements the k6modules.Module interface to return
// a new instance for each VU.
func (m *RootModule) NewModuleInstance(vu k6modules.VU) k6modules.Instance {
	rt := vu.Runtime()

	base := k6Logger(vu)
	opts := common.NewDriverOptions()
	if err := opts.Parse(lookupFunc(vu), log.New(base, false, nil)); err != nil {
		k6common.Throw(rt, fmt.Errorf("parsing driver options: %w", err))
	}
	// the level belongs to k6, only the debug override and filter apply
	logger := log.New(base, opts.Debug, nil)
	if err := logger.SetCategoryFilter(opts.LogCategoryFilter); err != nil {
		k6common.Throw(rt, err)
	}

	m.initOnce.Do(func() {
		m.initTracesProvider(vu.Context(), opts, logger)
	})

	metrics := k6ext.RegisterCustomMetrics(vu.InitEnv().Registry)
	mvu := moduleVU{VU: vu, vuDriver: &vuDriver{}}
	mvu.driver = common.NewDriver(opts, chromium.NewSessionFactory(opts, logger), logger,
		common.WithObserver(&vuObserver{vu: mvu, metrics: metrics}),
		common.WithTracer(acctrace.NewTracer(logger, m.tracesProvider, nil)),
	)

	return &ModuleInstance{
		mod: &JSModule{
			Driver:  rt.ToValue(mapDriver(mvu)).ToObject(rt),
			Version: version,
		},
	}
}

// Exports returns the exports of the JS module so that it can be used in test
// scripts.
func (mi *ModuleInstance) Exports() k6modules.Exports {
	return k6modules.Exports{Default: mi.mod}
}

func (m *RootModule) initTracesProvider(ctx context.Context, opts *common.DriverOptions, logger *log.Logger) {
	tp, err := otel.NewProvider(ctx, opts.TracesConfig())
	if err != nil {
		logger.Errorf("RootModule:initTracesProvider", "%v, traces are disabled", err)
		tp = otel.NoopProvider()
	}
	m.tracesProvider = tp
	osext.RegisterExitHook("traces provider", func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Errorf("RootModule:shutdown", "flushing traces: %v", err)
		}
	})
}

func lookupFunc(vu k6modules.VU) env.LookupFunc {
	if ie := vu.InitEnv(); ie != nil && ie.TestPreInitState != nil && ie.LookupEnv != nil {
		return ie.LookupEnv
	}
	return env.Lookup
}

func k6Logger(vu k6modules.VU) *logrus.Logger {
	if ie := vu.InitEnv(); ie != nil && ie.TestPreInitState != nil {
		switch l := ie.Logger.(type) {
		case *logrus.Logger:
			return l
		case *logrus.Entry:
			return l.Logger
		}
	}
	return logrus.StandardLogger()
}
