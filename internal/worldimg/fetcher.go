// Package worldimg locates and downloads pre-rendered Growtopia world images.
package worldimg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	DefaultPrimaryBaseURL  = "https://s3.amazonaws.com/world.growtopiagame.com/"
	DefaultFallbackBaseURL = "https://growtopiagame.com/worlds/"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	DefaultTimeout    = 15 * time.Second
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second

	defaultMaxConnsPerHost = 10
	maxResponseBodySize    = 32 << 20
	maxRedirects           = 5
)

// ErrNotPNG marks a 200 response whose body does not carry the PNG signature.
var ErrNotPNG = errors.New("payload is not a png image")

// Outcome tags a Result.
type Outcome int

const (
	NotFound Outcome = iota
	Success
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	default:
		return "not_found"
	}
}

// Result is the outcome of a single request or of a whole Fetch.
// Fetch only returns Success or NotFound.
type Result struct {
	Outcome     Outcome
	Image       []byte
	SourceURL   string
	CanonicalID string
	Attempts    int

	// Status is the last HTTP status observed, 0 after a transport error.
	Status int
	Err    error
}

func (r Result) OK() bool { return r.Outcome == Success && len(r.Image) > 0 }

// Endpoints is the primary/fallback pair of asset hosts.
type Endpoints struct {
	Primary  string
	Fallback string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{Primary: DefaultPrimaryBaseURL, Fallback: DefaultFallbackBaseURL}
}

// URLs builds both request URLs for an already normalized id.
func (e Endpoints) URLs(canonicalID string) (primary, fallback string) {
	return withSlash(e.Primary) + canonicalID + ".png", withSlash(e.Fallback) + canonicalID + ".png"
}

func withSlash(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher downloads rendered world images. It keeps no per-call state and is
// safe for concurrent use; the underlying connection pool is shared.
type Fetcher struct {
	endpoints  Endpoints
	http       *fasthttp.Client
	userAgent  string
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	sleep      SleepFunc
	logger     *zap.Logger
}

type Option func(*Fetcher)

func WithEndpoints(e Endpoints) Option {
	return func(f *Fetcher) { f.endpoints = e }
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if strings.TrimSpace(ua) != "" {
			f.userAgent = ua
		}
	}
}

// WithRetry overrides the attempt count and the base backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if delay >= 0 {
			f.retryDelay = delay
		}
	}
}

func WithSleep(s SleepFunc) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleep = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		endpoints: DefaultEndpoints(),
		http: &fasthttp.Client{
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			MaxResponseBodySize: maxResponseBodySize,
		},
		userAgent:  DefaultUserAgent,
		timeout:    DefaultTimeout,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		sleep:      sleepWithContext,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	// wait for a pooled connection instead of failing fast with ErrNoFreeConns
	f.http.MaxConnWaitTimeout = f.timeout
	return f
}

func (f *Fetcher) Endpoints() Endpoints { return f.endpoints }

// Fetch resolves worldName to a PNG. The primary host is always tried first;
// the fallback host is only consulted after a 404 from the primary. Transient
// statuses and transport errors back off linearly between attempts. A fallback
// that answers with any status moves straight to the next attempt.
func (f *Fetcher) Fetch(ctx context.Context, worldName string) Result {
	id := Normalize(worldName)
	primaryURL, fallbackURL := f.endpoints.URLs(id)
	log := f.logger.With(zap.String("world", id))

	attempts := 0
	for attempt := 0; attempt < f.attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		attempts++

		res := f.get(ctx, primaryURL)
		log.Info("world_fetch_status",
			zap.String("url", primaryURL),
			zap.Int("status", res.Status),
			zap.Int("attempt", attempt+1))

		switch res.Outcome {
		case Success:
			log.Info("world_fetch_ok", zap.String("source", primaryURL))
			return f.done(res, id, attempts)

		case NotFound:
			log.Warn("world_primary_missing", zap.String("fallback", fallbackURL))
			alt := f.get(ctx, fallbackURL)
			if alt.Outcome == Success {
				log.Info("world_fetch_ok", zap.String("source", fallbackURL))
				return f.done(alt, id, attempts)
			}
			log.Warn("world_fallback_failed",
				zap.String("url", fallbackURL),
				zap.Int("status", alt.Status),
				zap.Error(alt.Err))
			if alt.Status != 0 {
				continue
			}
			// transport error on the fallback backs off like one on the primary
			res = alt
		}

		if errors.Is(res.Err, ErrNotPNG) {
			log.Warn("world_invalid_png", zap.String("url", primaryURL))
			continue
		}

		log.Warn("world_fetch_retry",
			zap.String("url", res.SourceURL),
			zap.Int("attempt", attempt+1),
			zap.Error(res.Err))
		if attempt == f.attempts-1 {
			break
		}
		if err := f.sleep(ctx, f.retryDelay*time.Duration(attempt+1)); err != nil {
			break
		}
	}

	log.Warn("world_fetch_exhausted", zap.Int("attempts", attempts))
	return Result{Outcome: NotFound, SourceURL: primaryURL, CanonicalID: id, Attempts: attempts}
}

func (f *Fetcher) done(res Result, id string, attempts int) Result {
	res.CanonicalID = id
	res.Attempts = attempts
	return res
}

// get issues one GET, following redirects, and classifies the final response.
func (f *Fetcher) get(ctx context.Context, url string) Result {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.SetUserAgent(f.userAgent)

	timeout := time.Until(f.deadline(ctx))
	if timeout <= 0 {
		return Result{Outcome: TransientFailure, SourceURL: url, Err: fmt.Errorf("get %s: %w", url, fasthttp.ErrTimeout)}
	}
	req.SetTimeout(timeout)

	if err := f.http.DoRedirects(req, resp, maxRedirects); err != nil {
		return Result{Outcome: TransientFailure, SourceURL: url, Err: fmt.Errorf("get %s: %w", url, err)}
	}

	status := resp.StatusCode()
	switch status {
	case fasthttp.StatusOK:
		body := append([]byte(nil), resp.Body()...)
		if !IsPNG(body) {
			return Result{Outcome: TransientFailure, SourceURL: url, Status: status, Err: ErrNotPNG}
		}
		return Result{Outcome: Success, Image: body, SourceURL: url, Status: status}
	case fasthttp.StatusNotFound:
		return Result{Outcome: NotFound, SourceURL: url, Status: status}
	default:
		return Result{Outcome: TransientFailure, SourceURL: url, Status: status, Err: fmt.Errorf("unexpected status %d", status)}
	}
}

func (f *Fetcher) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(f.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
