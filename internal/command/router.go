// Package command parses prefixed chat commands and routes them to handlers.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrHandlerPanic    = errors.New("handler panic")
)

// ValidationError is user input rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invocation is one parsed command with its chat context.
type Invocation struct {
	Name      string
	Args      string
	Room      string
	Sender    string
	UserID    string
	RequestID string
}

type Handler func(ctx context.Context, inv Invocation) error

type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Summary     string
	RequiresArg bool
	Handler     Handler
}

// Router maps command names and aliases to handlers.
type Router struct {
	mu       sync.RWMutex
	byName   map[string]*Command
	commands []*Command
}

func NewRouter() *Router {
	return &Router{byName: map[string]*Command{}}
}

// Register adds cmd under its name and aliases. Names are case-insensitive;
// a name already taken is an error.
func (r *Router) Register(cmd Command) error {
	if cmd.Handler == nil {
		return fmt.Errorf("command %q: nil handler", cmd.Name)
	}
	keys := append([]string{cmd.Name}, cmd.Aliases...)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return fmt.Errorf("command %q: empty name", cmd.Name)
		}
		if _, dup := r.byName[k]; dup {
			return fmt.Errorf("command %q: name %q already registered", cmd.Name, k)
		}
	}
	c := cmd
	for _, k := range keys {
		r.byName[strings.ToLower(strings.TrimSpace(k))] = &c
	}
	r.commands = append(r.commands, &c)
	return nil
}

func (r *Router) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

func (r *Router) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// Commands lists registered commands sorted by name.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, *c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the handler for inv.Name. Panics are recovered and reported as
// ErrHandlerPanic so a single bad command never takes the bot down.
func (r *Router) Dispatch(ctx context.Context, inv Invocation) (err error) {
	cmd, ok := r.Lookup(inv.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Name)
	}
	if cmd.RequiresArg && strings.TrimSpace(inv.Args) == "" {
		return fmt.Errorf("%w: %s", ErrMissingArgument, cmd.Name)
	}
	inv.Name = cmd.Name

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, cmd.Name, rec)
		}
	}()
	return cmd.Handler(ctx, inv)
}

// Parse splits "<prefix><name> <args>" into name and args. ok is false when
// text does not start with prefix, or when the prefix is followed by nothing
// or by whitespace.
func Parse(prefix, text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	rest := text[len(prefix):]
	if rest == "" {
		return "", "", false
	}
	if r, _ := utf8.DecodeRuneInString(rest); unicode.IsSpace(r) {
		return "", "", false
	}
	name = rest
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, args = rest[:i], rest[i:]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}
