// Package browserprocess keeps track of the browser processes launched by
// drivers so they can be killed if the host goes down without closing them.
package browserprocess

import (
	"context"
	"sort"
	"sync"

	"github.com/grafana/xk6-acceptance/log"
	"github.com/grafana/xk6-acceptance/osext"
)

// Process is a launched browser process.
type Process struct {
	PID   int
	Owner string
}

var (
	processes   = map[Process]struct{}{} //nolint:gochecknoglobals
	processesMu sync.Mutex               //nolint:gochecknoglobals
)

// Register records a launched browser process under the owner in ctx.
func Register(ctx context.Context, logger *log.Logger, pid int) {
	p := Process{PID: pid, Owner: Owner(ctx)}

	processesMu.Lock()
	defer processesMu.Unlock()

	processes[p] = struct{}{}
	logger.Debugf("browserprocess:Register", "pid:%d owner:%q", p.PID, p.Owner)
}

// Unregister forgets a browser process that exited normally.
func Unregister(ctx context.Context, pid int) {
	processesMu.Lock()
	defer processesMu.Unlock()

	delete(processes, Process{PID: pid, Owner: Owner(ctx)})
}

// Registered returns the tracked processes ordered by PID.
func Registered() []Process {
	processesMu.Lock()
	defer processesMu.Unlock()

	ps := make([]Process, 0, len(processes))
	for p := range processes {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].PID < ps[j].PID })

	return ps
}

// ForceProcessShutdown kills the tracked processes and returns how many it
// killed. With an owner in ctx only that owner's processes are killed.
func ForceProcessShutdown(ctx context.Context) int {
	owner := Owner(ctx)

	processesMu.Lock()
	defer processesMu.Unlock()

	var n int
	for p := range processes {
		if owner != "" && p.Owner != owner {
			continue
		}
		osext.Kill(p.PID)
		delete(processes, p)
		n++
	}

	return n
}
