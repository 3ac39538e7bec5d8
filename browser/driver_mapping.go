package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/grafana/xk6-acceptance/api"

	k6common "go.k6.io/k6/js/common"
)

// mapping is a JS object exposed to scripts, keyed by JS name.
type mapping = map[string]any

// parentFrameName selects the parent frame in switchToFrame.
const parentFrameName = "parent"

// nodeSymbol holds the located node behind a JS node object so the object
// can be handed back to switchToFrame.
var nodeSymbol = goja.NewSymbol("acceptance.node") //nolint:gochecknoglobals

// mapDriver to the JS module.
func mapDriver(vu moduleVU) mapping { //nolint:funlen
	rt := vu.Runtime()

	return mapping{
		"title": func() (string, error) {
			return vu.acceptanceDriver().Title(vu.Context()) //nolint:wrapcheck
		},
		"html": func() (string, error) {
			return vu.acceptanceDriver().HTML(vu.Context()) //nolint:wrapcheck
		},
		"switchToFrame": func(frame goja.Value) error {
			ref, err := frameRef(rt, frame)
			if err != nil {
				k6common.Throw(rt, err)
			}
			return vu.acceptanceDriver().SwitchToFrame(vu.Context(), ref) //nolint:wrapcheck
		},
		"visit": func(url string) error {
			return vu.acceptanceDriver().Visit(vu.Context(), url) //nolint:wrapcheck
		},
		"executeScript": func(script string) error {
			return vu.acceptanceDriver().ExecuteScript(vu.Context(), script) //nolint:wrapcheck
		},
		"evaluateScript": func(script string) (any, error) {
			return vu.acceptanceDriver().EvaluateScript(vu.Context(), script) //nolint:wrapcheck
		},
		"acceptModal": func(kind string, opts goja.Value, trigger goja.Value) error {
			k, mopts, fn := parseModalArgs(rt, kind, opts, trigger)
			return vu.acceptanceDriver().AcceptModal(vu.Context(), k, mopts, fn) //nolint:wrapcheck
		},
		"dismissModal": func(kind string, opts goja.Value, trigger goja.Value) error {
			k, mopts, fn := parseModalArgs(rt, kind, opts, trigger)
			return vu.acceptanceDriver().DismissModal(vu.Context(), k, mopts, fn) //nolint:wrapcheck
		},
		"reset": func() error {
			return vu.acceptanceDriver().Reset(vu.Context()) //nolint:wrapcheck
		},
		"findCSS": func(query string) ([]*goja.Object, error) {
			nodes, err := vu.acceptanceDriver().FindCSS(vu.Context(), query)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			return nodeObjects(vu, nodes), nil
		},
		"findXPath": func(query string) ([]*goja.Object, error) {
			nodes, err := vu.acceptanceDriver().FindXPath(vu.Context(), query)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			return nodeObjects(vu, nodes), nil
		},
		"savePage": func(path string) error {
			return vu.acceptanceDriver().SavePage(vu.Context(), path) //nolint:wrapcheck
		},
		"close": func() error {
			return vu.acceptanceDriver().Close(vu.Context()) //nolint:wrapcheck
		},
	}
}

// mapNode to the JS module.
func mapNode(vu moduleVU, n api.Node) mapping {
	return mapping{
		"text": func() (string, error) {
			return n.Text(vu.Context()) //nolint:wrapcheck
		},
		"attribute": func(name string) (string, error) {
			return n.Attribute(vu.Context(), name) //nolint:wrapcheck
		},
		"click": func() error {
			return n.Click(vu.Context()) //nolint:wrapcheck
		},
	}
}

func nodeObjects(vu moduleVU, nodes []api.Node) []*goja.Object {
	rt := vu.Runtime()
	objs := make([]*goja.Object, 0, len(nodes))
	for _, n := range nodes {
		obj := rt.NewObject()
		for name, fn := range mapNode(vu, n) {
			if err := obj.Set(name, fn); err != nil {
				k6common.Throw(rt, err)
			}
		}
		if err := obj.DefineDataPropertySymbol(
			nodeSymbol, rt.ToValue(n), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE,
		); err != nil {
			k6common.Throw(rt, err)
		}
		objs = append(objs, obj)
	}
	return objs
}

// frameRef converts the argument of switchToFrame: a node object or "parent".
func frameRef(rt *goja.Runtime, v goja.Value) (api.FrameRef, error) {
	if !gojaValueExists(v) {
		return nil, errors.New("switchToFrame requires a node or \"parent\"")
	}
	if s, ok := v.Export().(string); ok {
		if s != parentFrameName {
			return nil, fmt.Errorf("unknown frame %q, use a node or %q", s, parentFrameName)
		}
		return api.ParentFrame, nil
	}
	if n, ok := v.ToObject(rt).GetSymbol(nodeSymbol).Export().(api.Node); ok {
		return n, nil
	}
	return nil, errors.New("switchToFrame requires a node returned by findCSS or findXPath")
}

func parseModalArgs(
	rt *goja.Runtime, kind string, opts goja.Value, trigger goja.Value,
) (api.ModalKind, api.ModalOptions, func() error) {
	k, err := parseModalKind(kind)
	if err != nil {
		k6common.Throw(rt, err)
	}
	mopts, err := parseModalOptions(rt, opts)
	if err != nil {
		k6common.Throw(rt, err)
	}
	if !gojaValueExists(trigger) {
		return k, mopts, nil
	}
	fn, ok := goja.AssertFunction(trigger)
	if !ok {
		k6common.Throw(rt, errors.New("modal trigger must be a function"))
	}

	return k, mopts, func() error {
		_, err := fn(goja.Undefined())
		return err //nolint:wrapcheck
	}
}

func parseModalKind(kind string) (api.ModalKind, error) {
	switch k := api.ModalKind(kind); k {
	case api.ModalAlert, api.ModalConfirm, api.ModalPrompt, api.ModalBeforeUnload:
		return k, nil
	default:
		return "", fmt.Errorf("unknown modal kind %q", kind)
	}
}

// parseModalOptions reads { text, response, wait } with wait in seconds.
func parseModalOptions(rt *goja.Runtime, opts goja.Value) (api.ModalOptions, error) {
	var mopts api.ModalOptions
	if !gojaValueExists(opts) {
		return mopts, nil
	}

	obj := opts.ToObject(rt)
	for _, k := range obj.Keys() {
		v := obj.Get(k)
		if !gojaValueExists(v) {
			continue
		}
		switch k {
		case "text":
			mopts.Text = v.String()
		case "response":
			mopts.Response = v.String()
		case "wait":
			secs := v.ToFloat()
			if secs < 0 {
				return mopts, fmt.Errorf("modal wait must not be negative, got %v", secs)
			}
			mopts.Wait = time.Duration(secs * float64(time.Second))
		}
	}

	return mopts, nil
}
