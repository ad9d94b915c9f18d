package command

import (
	"context"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		text       string
		name, args string
		ok         bool
	}{
		{"?drawworld buy", "drawworld", "buy", true},
		{"  ?W  Grow Topia  ", "w", "Grow Topia", true},
		{"?test", "test", "", true},
		{"?world\tstart", "world", "start", true},
		{"?", "", "", false},
		{"? w buy", "", "", false},
		{"hello", "", "", false},
		{"!w buy", "", "", false},
	}
	for _, c := range cases {
		name, args, ok := Parse("?", c.text)
		if ok != c.ok || name != c.name || args != c.args {
			t.Fatalf("Parse(%q) = (%q, %q, %v), want (%q, %q, %v)", c.text, name, args, ok, c.name, c.args, c.ok)
		}
	}
}

func TestParseMultiCharPrefix(t *testing.T) {
	name, args, ok := Parse("gt!", "gt!w start")
	if !ok || name != "w" || args != "start" {
		t.Fatalf("got (%q, %q, %v)", name, args, ok)
	}
}

func newTestRouter(t *testing.T, called *string) *Router {
	t.Helper()
	r := NewRouter()
	r.MustRegister(Command{
		Name:        "drawworld",
		Aliases:     []string{"world", "W"},
		RequiresArg: true,
		Handler: func(_ context.Context, inv Invocation) error {
			*called = inv.Name + ":" + inv.Args
			return nil
		},
	})
	r.MustRegister(Command{
		Name:    "boom",
		Handler: func(context.Context, Invocation) error { panic("kaboom") },
	})
	return r
}

func TestDispatchResolvesAliases(t *testing.T) {
	var called string
	r := newTestRouter(t, &called)
	for _, name := range []string{"drawworld", "world", "w", "W"} {
		called = ""
		if err := r.Dispatch(context.Background(), Invocation{Name: name, Args: "buy"}); err != nil {
			t.Fatalf("Dispatch(%s): %v", name, err)
		}
		if called != "drawworld:buy" {
			t.Fatalf("handler saw %q for alias %s", called, name)
		}
	}
}

func TestDispatchErrors(t *testing.T) {
	var called string
	r := newTestRouter(t, &called)

	err := r.Dispatch(context.Background(), Invocation{Name: "nope"})
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	err = r.Dispatch(context.Background(), Invocation{Name: "w", Args: "   "})
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("expected ErrMissingArgument, got %v", err)
	}
	if called != "" {
		t.Fatalf("handler must not run on missing argument")
	}
	err = r.Dispatch(context.Background(), Invocation{Name: "boom"})
	if !errors.Is(err, ErrHandlerPanic) {
		t.Fatalf("expected ErrHandlerPanic, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRouter()
	h := func(context.Context, Invocation) error { return nil }
	if err := r.Register(Command{Name: "test", Handler: h}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Command{Name: "other", Aliases: []string{"TEST"}, Handler: h}); err == nil {
		t.Fatalf("expected duplicate alias error")
	}
	if _, ok := r.Lookup("other"); ok {
		t.Fatalf("failed registration must not leave partial entries")
	}
	if err := r.Register(Command{Name: "nil"}); err == nil {
		t.Fatalf("expected nil handler error")
	}
}

func TestCommandsSorted(t *testing.T) {
	var called string
	r := newTestRouter(t, &called)
	cmds := r.Commands()
	if len(cmds) != 2 || cmds[0].Name != "boom" || cmds[1].Name != "drawworld" {
		t.Fatalf("unexpected commands %+v", cmds)
	}
}

func TestValidationErrorAs(t *testing.T) {
	var err error = &ValidationError{Field: "world", Reason: "too short"}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "world" {
		t.Fatalf("errors.As failed")
	}
}
