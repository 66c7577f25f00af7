// Package command maps slash commands to handlers.  A Dispatcher is built
// once at startup and is read-only afterwards.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrDuplicateCommand is returned by Register for a name already taken.
var ErrDuplicateCommand = errors.New("command already registered")

// Request is one inbound command line.
type Request struct {
	UserID int64
	Name   string   // lower-cased, without the leading slash
	Args   []string // whitespace-separated arguments
}

// HandlerFunc answers a command.  A returned error means the reply could not
// be produced (storage failure) rather than a usage mistake; usage mistakes
// are replies.
type HandlerFunc func(ctx context.Context, req Request) (string, error)

type entry struct {
	summary string
	handler HandlerFunc
}

// Dispatcher routes command lines to registered handlers.
type Dispatcher struct {
	cmds map[string]entry
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{cmds: make(map[string]entry)}
}

// Register adds name (with or without the leading slash).
func (d *Dispatcher) Register(name, summary string, h HandlerFunc) error {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" || h == nil {
		return fmt.Errorf("register %q: empty name or nil handler", name)
	}
	if _, ok := d.cmds[name]; ok {
		return fmt.Errorf("%w: /%s", ErrDuplicateCommand, name)
	}
	d.cmds[name] = entry{summary: summary, handler: h}
	return nil
}

// Parse splits a command line.  "/plan@docbot extra" yields name "plan" and
// args ["extra"].  ok is false when text is not a command.
func Parse(userID int64, text string) (Request, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Request{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return Request{}, false
	}
	return Request{UserID: userID, Name: strings.ToLower(name), Args: fields[1:]}, true
}

// Dispatch runs the handler for text.  Unknown commands and plain text get a
// hint pointing at /help.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, text string) (string, error) {
	req, ok := Parse(userID, text)
	if !ok {
		return "Send a command such as /help.", nil
	}
	e, ok := d.cmds[req.Name]
	if !ok {
		return fmt.Sprintf("Unknown command /%s. Use /help to see what is available.", req.Name), nil
	}
	return e.handler(ctx, req)
}

// Help lists registered commands alphabetically.
func (d *Dispatcher) Help() string {
	names := make([]string, 0, len(d.cmds))
	for n := range d.cmds {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, n := range names {
		fmt.Fprintf(&b, "\n/%s - %s", n, d.cmds[n].summary)
	}
	return b.String()
}
