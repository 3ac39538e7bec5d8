// Package osext holds process-wide hooks run when the host is shutting down.
package osext

import (
	"sort"
	"sync"
)

type exitHook struct {
	id   int
	name string
	fn   func()
}

var (
	exitHooks   = map[int]exitHook{} //nolint:gochecknoglobals
	exitHooksMu sync.Mutex           //nolint:gochecknoglobals
	nextHookID  int                  //nolint:gochecknoglobals
)

// RegisterExitHook registers fn to be run by RunExitHooks. The returned
// function removes the hook again; it is safe to call more than once.
func RegisterExitHook(name string, fn func()) (unregister func()) {
	exitHooksMu.Lock()
	defer exitHooksMu.Unlock()

	nextHookID++
	id := nextHookID
	exitHooks[id] = exitHook{id: id, name: name, fn: fn}

	return func() {
		exitHooksMu.Lock()
		defer exitHooksMu.Unlock()
		delete(exitHooks, id)
	}
}

// RunExitHooks runs and removes every registered hook, the most recently
// registered first. It returns the names of the hooks it ran.
func RunExitHooks() []string {
	exitHooksMu.Lock()
	hooks := make([]exitHook, 0, len(exitHooks))
	for _, h := range exitHooks {
		hooks = append(hooks, h)
	}
	exitHooks = map[int]exitHook{}
	exitHooksMu.Unlock()

	sort.Slice(hooks, func(i, j int) bool { return hooks[i].id > hooks[j].id })
	names := make([]string, 0, len(hooks))
	for _, h := range hooks {
		h.fn()
		names = append(names, h.name)
	}

	return names
}
