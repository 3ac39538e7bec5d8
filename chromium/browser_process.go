/*
 *
 * xk6-acceptance - an acceptance testing driver extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package chromium

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/storage"
)

const devToolsListening = "DevTools listening on "

// errProcessEnded is returned when the browser exits before reporting its
// DevTools URL.
var errProcessEnded = errors.New("browser process ended unexpectedly")

// browserProcess is a locally launched browser.
type browserProcess struct {
	cancel context.CancelFunc
	meta   processMeta

	// Channels for managing termination.
	lostConnection             chan struct{}
	processIsGracefullyClosing chan struct{}
	processDone                chan struct{}

	// Browser's WebSocket URL to speak CDP
	wsURL string

	logger *log.Logger
}

func newBrowserProcess(
	ctx context.Context, path string, args, env []string, dataDir *storage.Dir,
	ctxCancel context.CancelFunc, logger *log.Logger,
) (*browserProcess, error) {
	cmd, err := execute(ctx, path, args, env, logger)
	if err != nil {
		return nil, err
	}

	wsURL, err := parseDevToolsURL(ctx, cmd)
	if err != nil {
		// some builds only write the port file
		var ferr error
		if wsURL, ferr = readDevToolsActivePort(dataDir.Dir); ferr != nil {
			ctxCancel()
			<-cmd.done
			_ = dataDir.Cleanup()
			return nil, errors.Wrap(err, "getting DevTools URL")
		}
	}

	p := browserProcess{
		cancel:                     ctxCancel,
		meta:                       newLocalProcessMeta(cmd.Process, dataDir),
		lostConnection:             make(chan struct{}),
		processIsGracefullyClosing: make(chan struct{}),
		processDone:                cmd.done,
		wsURL:                      wsURL,
		logger:                     logger,
	}

	go func() {
		// If we lose connection to the browser and we're not in-progress with clean
		// browser-initiated termination then cancel the context to clean up.
		select {
		case <-p.lostConnection:
		case <-ctx.Done():
		}

		select {
		case <-p.processIsGracefullyClosing:
		default:
			p.cancel()
		}
	}()

	return &p, nil
}

func (p *browserProcess) didLoseConnection() {
	select {
	case <-p.lostConnection:
	default:
		close(p.lostConnection)
	}
}

// GracefulClose marks the process as closing on request so losing the
// connection no longer kills it.
func (p *browserProcess) GracefulClose() {
	p.logger.Debugf("BrowserProcess:GracefulClose", "pid:%d", p.Pid())
	select {
	case <-p.processIsGracefullyClosing:
	default:
		close(p.processIsGracefullyClosing)
	}
}

// Terminate kills the browser process.
func (p *browserProcess) Terminate() {
	p.logger.Debugf("BrowserProcess:Terminate", "pid:%d", p.Pid())
	p.cancel()
}

// Wait blocks until the process exits or ctx is done.
func (p *browserProcess) Wait(ctx context.Context) error {
	select {
	case <-p.processDone:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}
}

// WsURL returns the Websocket URL that the browser is listening on for CDP clients.
func (p *browserProcess) WsURL() string {
	return p.wsURL
}

// Pid returns the browser process ID.
func (p *browserProcess) Pid() int {
	return p.meta.Pid()
}

type command struct {
	*exec.Cmd
	done   chan struct{}
	stderr io.Reader
}

func execute(
	ctx context.Context, path string, args, env []string, logger *log.Logger,
) (command, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	killAfterParent(cmd)

	// Set up environment variable for process
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return command{}, errors.Wrap(err, "getting browser process stderr")
	}

	// We must start the cmd before calling cmd.Wait, as otherwise the two
	// can run into a data race.
	err = cmd.Start()
	if os.IsNotExist(err) {
		return command{}, errors.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return command{}, errors.Wrapf(err, "starting %s", path)
	}
	if ctx.Err() != nil {
		return command{}, errors.WithStack(ctx.Err())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logger.Errorf("browser",
				"process with PID %d unexpectedly ended: %v",
				cmd.Process.Pid, err)
		}
	}()

	return command{cmd, done, stderr}, nil
}

// parseDevToolsURL scans the browser stderr for the DevTools WebSocket
// address. A fatal browser error read before the stream ends is returned as
// the error.
func parseDevToolsURL(ctx context.Context, cmd command) (string, error) {
	type result struct {
		devToolsURL string
		err         error
	}
	parsed := make(chan result, 1)
	go func() {
		var (
			fatalMsg string
			scanner  = bufio.NewScanner(cmd.stderr)
		)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, devToolsListening) {
				parsed <- result{strings.TrimPrefix(line, devToolsListening), nil}
				// keep the pipe from filling up and blocking the browser
				_, _ = io.Copy(io.Discard, cmd.stderr)
				return
			}
			if msg, ok := browserError(line); ok {
				fatalMsg = msg
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		if fatalMsg != "" {
			err = errors.New(fatalMsg)
		}
		parsed <- result{"", err}
	}()

	select {
	case r := <-parsed:
		return r.devToolsURL, r.err
	case <-cmd.done:
		return "", errProcessEnded
	case <-ctx.Done():
		return "", ctx.Err() //nolint:wrapcheck
	}
}

// browserError extracts the message of a Chromium log line such as
// "[6497:6497:1013/103521.932979:ERROR:file.cc(247)] Missing X server".
func browserError(line string) (string, bool) {
	i := strings.Index(line, ":ERROR:")
	if i < 0 {
		return "", false
	}
	j := strings.Index(line[i:], "] ")
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(line[i+j+2:]), true
}

// readDevToolsActivePort returns the DevTools WebSocket address written to
// the DevToolsActivePort file in the data directory.
func readDevToolsActivePort(dataDir string) (string, error) {
	fpath := filepath.Join(dataDir, "DevToolsActivePort")
	f, err := os.Open(fpath) //nolint:gosec
	if err != nil {
		return "", errors.Wrapf(err, "reading %q", fpath)
	}
	defer f.Close() //nolint:errcheck

	fs := bufio.NewScanner(f)
	portURI := make([]string, 0, 2)
	for fs.Scan() {
		portURI = append(portURI, fs.Text())
	}
	if len(portURI) < 2 {
		return "", fmt.Errorf("malformed %q", fpath)
	}

	return fmt.Sprintf("ws://127.0.0.1:%s%s", portURI[0], portURI[1]), nil
}
