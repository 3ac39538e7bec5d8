package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/grafana/xk6-acceptance/api"
	"github.com/grafana/xk6-acceptance/common"
)

const helpText = `commands:
  visit URL                  open URL, relative to the app host
  title                      print the page title
  html                       print the page source
  eval JS                    evaluate an expression and print its value
  exec JS                    run statements
  find CSS                   list the text of the matching nodes
  xpath QUERY                list the text of the matching nodes
  frame CSS|parent           enter the first matching frame, or leave one
  accept [KIND] [TEXT]       accept the showing dialog, optionally matching TEXT
  dismiss [KIND] [TEXT]      dismiss the showing dialog
  reset                      drain dialogs and go to the blank page
  save PATH                  write the page source to PATH
  quit                       close the browser and exit`

var errQuit = errors.New("quit")

// shell runs driver commands read line by line.
type shell struct {
	driver *common.Driver
	out    io.Writer

	prompt *color.Color
	value  *color.Color
	fail   *color.Color
}

func newShell(driver *common.Driver, out io.Writer, noColor bool) *shell {
	sh := &shell{
		driver: driver,
		out:    out,
		prompt: color.New(color.FgCyan, color.Bold),
		value:  color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
	}
	if noColor {
		for _, c := range []*color.Color{sh.prompt, sh.value, sh.fail} {
			c.DisableColor()
		}
	}
	return sh
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		sh.prompt.Fprint(sh.out, "> ") //nolint:errcheck
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := sh.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				sh.fail.Fprintf(sh.out, "error: %v\n", err) //nolint:errcheck
			}
		}
	}
}

func (sh *shell) exec(ctx context.Context, line string) error { //nolint:cyclop
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "":
		return nil
	case "help":
		fmt.Fprintln(sh.out, helpText)
		return nil
	case "quit", "exit":
		if err := sh.driver.Close(ctx); err != nil {
			return err //nolint:wrapcheck
		}
		return errQuit
	case "visit":
		return sh.driver.Visit(ctx, arg) //nolint:wrapcheck
	case "title":
		return sh.print(sh.driver.Title(ctx))
	case "html":
		return sh.print(sh.driver.HTML(ctx))
	case "eval":
		v, err := sh.driver.EvaluateScript(ctx, arg)
		return sh.print(fmt.Sprintf("%v", v), err)
	case "exec":
		return sh.driver.ExecuteScript(ctx, arg) //nolint:wrapcheck
	case "find":
		return sh.list(ctx)(sh.driver.FindCSS(ctx, arg))
	case "xpath":
		return sh.list(ctx)(sh.driver.FindXPath(ctx, arg))
	case "frame":
		return sh.frame(ctx, arg)
	case "accept", "dismiss":
		kind, text := parseModalArg(arg)
		opts := api.ModalOptions{Text: text}
		if name == "accept" {
			return sh.driver.AcceptModal(ctx, kind, opts, nil) //nolint:wrapcheck
		}
		return sh.driver.DismissModal(ctx, kind, opts, nil) //nolint:wrapcheck
	case "reset":
		return sh.driver.Reset(ctx) //nolint:wrapcheck
	case "save":
		if arg == "" {
			return errors.New("save needs a path")
		}
		return sh.driver.SavePage(ctx, arg) //nolint:wrapcheck
	default:
		return fmt.Errorf("unknown command %q, type help", name)
	}
}

func (sh *shell) print(s string, err error) error {
	if err != nil {
		return err
	}
	sh.value.Fprintln(sh.out, s) //nolint:errcheck
	return nil
}

// list returns a printer of the text of located nodes.
func (sh *shell) list(ctx context.Context) func([]api.Node, error) error {
	return func(nodes []api.Node, err error) error {
		if err != nil {
			return err
		}
		for i, n := range nodes {
			text, err := n.Text(ctx)
			if err != nil {
				return fmt.Errorf("reading node %d: %w", i, err)
			}
			sh.value.Fprintf(sh.out, "[%d] %s\n", i, text) //nolint:errcheck
		}
		return nil
	}
}

func (sh *shell) frame(ctx context.Context, arg string) error {
	if arg == "parent" {
		return sh.driver.SwitchToFrame(ctx, api.ParentFrame) //nolint:wrapcheck
	}
	nodes, err := sh.driver.FindCSS(ctx, arg)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no frame matches %q", arg)
	}
	return sh.driver.SwitchToFrame(ctx, nodes[0]) //nolint:wrapcheck
}

// parseModalArg splits "[KIND] [TEXT]", the kind defaulting to confirm.
func parseModalArg(arg string) (api.ModalKind, string) {
	first, rest, _ := strings.Cut(arg, " ")
	switch k := api.ModalKind(first); k {
	case api.ModalAlert, api.ModalConfirm, api.ModalPrompt, api.ModalBeforeUnload:
		return k, strings.TrimSpace(rest)
	}
	return api.ModalConfirm, arg
}
