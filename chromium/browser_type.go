// Package chromium is responsible for launching a Chrome browser process and managing its lifetime.
package chromium

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/browserprocess"
	"github.com/grafana/xk6-acceptance/cdp"
	"github.com/grafana/xk6-acceptance/common"
	"github.com/grafana/xk6-acceptance/env"
	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/storage"
)

const closeTimeout = 5 * time.Second

// ErrNoExecutable is returned by Launch when no browser binary is
// configured or found.
var ErrNoExecutable = errors.New("no Chromium executable found")

// BrowserType launches Chromium browsers, or connects to running ones, and
// opens driver sessions on them.
type BrowserType struct {
	opts   *common.DriverOptions
	logger *log.Logger
}

// NewBrowserType returns a BrowserType configured by opts.
func NewBrowserType(opts *common.DriverOptions, logger *log.Logger) *BrowserType {
	return &BrowserType{opts: opts, logger: logger}
}

// NewSessionFactory returns a session factory connecting to opts.WSURL when
// it is set and launching a local browser otherwise.
func NewSessionFactory(opts *common.DriverOptions, logger *log.Logger) common.SessionFactory {
	bt := NewBrowserType(opts, logger)
	return func(ctx context.Context) (api.NativeSession, error) {
		var (
			s   *cdp.Session
			err error
		)
		if opts.WSURL != "" {
			s, err = bt.Connect(ctx, opts.WSURL)
		} else {
			s, err = bt.Launch(ctx)
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Launch starts a local browser with a temporary user data directory and
// opens a session on a new page. Quitting the session stops the browser.
func (b *BrowserType) Launch(ctx context.Context) (*cdp.Session, error) {
	path := b.opts.ExecutablePath
	if path == "" {
		var err error
		if path, err = executablePath(); err != nil {
			return nil, err
		}
	}

	dataDir := &storage.Dir{}
	if err := dataDir.Make("", ""); err != nil {
		return nil, errors.Wrap(err, "preparing user data directory")
	}

	// the process outlives ctx, it is bound to the session instead
	procCtx, cancel := context.WithCancel(context.Background())
	proc, err := newBrowserProcess(procCtx, path, prepareFlags(b.opts, dataDir.Dir), nil, dataDir, cancel, b.logger)
	if err != nil {
		cancel()
		_ = dataDir.Cleanup()
		return nil, errors.Wrapf(err, "launching browser %q", path)
	}
	browserprocess.Register(ctx, b.logger, proc.Pid())
	b.logger.Debugf("BrowserType:Launch", "pid:%d wsURL:%q", proc.Pid(), proc.WsURL())

	regCtx := browserprocess.WithOwner(context.Background(), browserprocess.Owner(ctx))
	s, err := b.connect(ctx, proc.WsURL(), proc.meta, proc, regCtx)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to browser pid %d", proc.Pid())
	}

	return s, nil
}

// Connect attaches to the browser listening on wsURL and opens a session on
// a new page. Quitting the session leaves the browser running.
func (b *BrowserType) Connect(ctx context.Context, wsURL string) (*cdp.Session, error) {
	s, err := b.connect(ctx, wsURL, newRemoteProcessMeta(), nil, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %q", wsURL)
	}

	return s, nil
}

func (b *BrowserType) connect(
	ctx context.Context, wsURL string, meta processMeta, proc *browserProcess, regCtx context.Context, //nolint:revive
) (*cdp.Session, error) {
	client := cdp.NewClient(context.Background(), b.logger)

	quit := func(ctx context.Context) error {
		return b.shutdown(ctx, client, meta, proc, regCtx)
	}

	if err := client.Connect(ctx, wsURL); err != nil {
		_ = quit(ctx)
		return nil, err
	}
	if proc != nil {
		go func() {
			select {
			case <-client.Done():
				proc.didLoseConnection()
			case <-proc.processDone:
			}
		}()
	}

	v, err := client.Browser.Version(ctx)
	if err != nil {
		_ = quit(ctx)
		return nil, errors.Wrap(err, "getting browser version")
	}
	b.logger.Infof("BrowserType:connect", "connected to %s (pid %d, headless:%t)", v.Product, meta.Pid(), v.Headless())

	s, err := cdp.NewSession(ctx, client, cdp.SessionOptions{
		Timeout: b.opts.Timeout,
		OnQuit:  quit,
	}, b.logger)
	if err != nil {
		_ = quit(ctx)
		return nil, errors.Wrap(err, "opening page")
	}

	return s, nil
}

// shutdown closes the CDP connection and, for a launched browser, stops the
// process and removes its data directory.
func (b *BrowserType) shutdown(
	ctx context.Context, client *cdp.Client, meta processMeta, proc *browserProcess, regCtx context.Context, //nolint:revive
) error {
	if proc == nil {
		_ = client.Close()
		return meta.Cleanup() //nolint:wrapcheck
	}

	proc.GracefulClose()
	if err := client.Browser.Close(ctx); err != nil {
		b.logger.Debugf("BrowserType:shutdown", "closing browser: %v", err)
	}
	_ = client.Close()

	waitCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := proc.Wait(waitCtx); err != nil {
		b.logger.Warnf("BrowserType:shutdown", "browser pid %d did not exit, killing it", proc.Pid())
		proc.Terminate()
		<-proc.processDone
	}
	browserprocess.Unregister(regCtx, proc.Pid())

	return meta.Cleanup() //nolint:wrapcheck
}

func prepareFlags(opts *common.DriverOptions, userDataDir string) []string {
	headless := !opts.Headless.Valid || opts.Headless.Bool

	f := map[string]interface{}{
		"disable-background-networking":                      true,
		"enable-features":                                    "NetworkService,NetworkServiceInProcess",
		"disable-background-timer-throttling":                true,
		"disable-backgrounding-occluded-windows":             true,
		"disable-breakpad":                                   true,
		"disable-component-extensions-with-background-pages": true,
		"disable-default-apps":                               true,
		"disable-dev-shm-usage":                              true,
		"disable-extensions":                                 true,
		"disable-features":                                   "ImprovedCookieControls,LazyFrameLoading,GlobalMediaControls,MediaRouter",
		"disable-hang-monitor":                               true,
		"disable-ipc-flooding-protection":                    true,
		"disable-prompt-on-repost":                           true,
		"disable-renderer-backgrounding":                     true,
		"disable-sync":                                       true,
		"force-color-profile":                                "srgb",
		"metrics-recording-only":                             true,
		"no-first-run":                                       true,
		"safebrowsing-disable-auto-update":                   true,
		"enable-automation":                                  true,
		"password-store":                                     "basic",
		"use-mock-keychain":                                  true,
		"no-service-autorun":                                 true,
		"no-startup-window":                                  true,
		"no-default-browser-check":                           true,
		"no-sandbox":                                         true,
		"headless":                                           headless,
		"remote-debugging-port":                              "0",
		"user-data-dir":                                      userDataDir,
	}
	if headless {
		f["hide-scrollbars"] = true
		f["mute-audio"] = true
		f["blink-settings"] = "primaryHoverType=2,availableHoverTypes=2,primaryPointerType=4,availablePointerTypes=4"
	}

	for _, arg := range opts.Args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimLeft(k, "-")
		if !ok {
			f[k] = true
			continue
		}
		f[k] = v
	}

	args := make([]string, 0, len(f))
	for k, v := range f {
		switch v := v.(type) {
		case bool:
			if v {
				args = append(args, "--"+k)
			}
		default:
			args = append(args, fmt.Sprintf("--%s=%v", k, v))
		}
	}
	sort.Strings(args)

	return args
}

// executablePath returns the first Chromium found on the system.
func executablePath() (string, error) {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "windows":
		candidates = []string{
			"chrome", "chrome.exe",
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		}
	default:
		candidates = []string{
			"chromium", "chromium-browser", "google-chrome",
			"google-chrome-stable", "google-chrome-beta", "google-chrome-unstable",
			"/usr/bin/google-chrome",
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		if path, err := exec.LookPath(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w, set %s", ErrNoExecutable, env.ExecutablePath)
}
