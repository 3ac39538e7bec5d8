// Command acceptance-shell drives a browser interactively through the
// acceptance driver, one command per line.
package main

import (
	"os"

	"github.com/grafana/xk6-acceptance/chromium"
	"github.com/grafana/xk6-acceptance/env"
)

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout, env.Lookup, chromium.NewSessionFactory)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
