// Package tests runs the driver against a real Chromium. The tests are
// skipped when no browser can be found.
package tests

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mccutchen/go-httpbin/httpbin"
	"github.com/stretchr/testify/require"

	"github.com/grafana/xk6-acceptance/chromium"
	"github.com/grafana/xk6-acceptance/common"
	"github.com/grafana/xk6-acceptance/env"
	"github.com/grafana/xk6-acceptance/log"
)

// testDriver is a driver of a launched browser plus the HTTP server its
// pages come from.
type testDriver struct {
	t testing.TB
	*common.Driver

	mux *http.ServeMux
	srv *httptest.Server
}

// newTestDriver launches a browser for t. Paths without a handler are
// served by httpbin.
func newTestDriver(t testing.TB) *testDriver {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle("/", httpbin.New().Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	opts := common.NewDriverOptions()
	if err := opts.Parse(env.Lookup, log.NewNullLogger()); err != nil {
		t.Fatalf("parsing driver options: %v", err)
	}
	opts.AppHost = srv.URL
	opts.WSURL = ""

	logger := log.NewNullLogger()
	d := common.NewDriver(opts, chromium.NewSessionFactory(opts, logger), logger)
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	// sessions start lazily, visiting finds out whether a browser exists
	err := d.Visit(context.Background(), "/status/200")
	if errors.Is(err, chromium.ErrNoExecutable) {
		t.Skipf("skipping: %v", err)
	}
	require.NoError(t, err)

	return &testDriver{t: t, Driver: d, mux: mux, srv: srv}
}

// withHTML serves html at path.
func (td *testDriver) withHTML(path, html string) *testDriver {
	td.mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	})
	return td
}

// ctx returns a context bounding a single test step.
func (td *testDriver) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	td.t.Cleanup(cancel)
	return ctx
}
