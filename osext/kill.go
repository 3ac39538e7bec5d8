package osext

import "os"

// Kill will look for and kill the process with the
// given pid. This is only being exported to allow
// tests to override it so that in those tests no
// real process gets killed.
var Kill = func(pid int) { //nolint:gochecknoglobals
	p, err := os.FindProcess(pid)
	if err != nil {
		// optimistically continue and don't kill the process
		return
	}
	// no need to check the error since we're already dying.
	_ = p.Kill()
	_ = p.Release()
}
