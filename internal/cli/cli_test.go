package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nbody")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestURLs(t *testing.T) {
	out, err := run(t, "urls", "Grow", "Topia")
	if err != nil {
		t.Fatalf("urls: %v", err)
	}
	if !strings.Contains(out, "https://s3.amazonaws.com/world.growtopiagame.com/growtopia.png") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "https://growtopiagame.com/worlds/growtopia.png") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestFetchWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p/buy.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(fakePNG)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "out", "buy.png")
	out, err := run(t, "fetch", "BUY", "-o", dst, "--primary", srv.URL+"/p/", "--fallback", srv.URL+"/f/")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(b, fakePNG) {
		t.Fatalf("unexpected file contents")
	}
	if !strings.Contains(out, srv.URL+"/p/buy.png") {
		t.Fatalf("output should name the source: %q", out)
	}
}

func TestFetchMissingWorld(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := run(t, "fetch", "nosuch", "-o", filepath.Join(t.TempDir(), "x.png"),
		"--primary", srv.URL+"/p/", "--fallback", srv.URL+"/f/")
	if !errors.Is(err, ErrWorldNotFound) {
		t.Fatalf("expected ErrWorldNotFound, got %v", err)
	}
}

func TestFetchRequiresWorld(t *testing.T) {
	if _, err := run(t, "fetch"); err == nil {
		t.Fatalf("expected argument error")
	}
}
