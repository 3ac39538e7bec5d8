// Package acceptance only exists to register the xk6-acceptance extension.
package acceptance

import (
	"github.com/grafana/xk6-acceptance/browser"

	k6modules "go.k6.io/k6/js/modules"
)

func init() {
	k6modules.Register("k6/x/acceptance", browser.New())
}
