package secrets

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/firewatch-dev/firewatch/internal/errors"
)

// ErrNotSet is returned when a named secret has no value in a source.
var ErrNotSet = errors.NewKind("secret not set", errors.CategoryNotFound)

// ErrRemoteUnavailable is returned when the remote secret endpoint cannot be reached
// or answers with an unexpected status.
var ErrRemoteUnavailable = errors.NewKind("secret endpoint unavailable", errors.CategoryNetwork)

// Source looks up named credentials such as AWS_ACCESS_KEY_ID.
type Source interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// EnvSource reads secrets from the process environment.
type EnvSource struct{}

// Lookup returns the environment value or ErrNotSet when it is unset or empty.
func (EnvSource) Lookup(_ context.Context, name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", ErrNotSet
}

// StaticSource serves secrets resolved from configuration.
type StaticSource map[string]string

// Lookup returns the configured value or ErrNotSet.
func (s StaticSource) Lookup(_ context.Context, name string) (string, error) {
	if v := s[name]; v != "" {
		return v, nil
	}
	return "", ErrNotSet
}

// Chain tries each source in order. ErrNotSet moves on to the next source;
// any other error stops the lookup.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, name string) (string, error) {
	for _, src := range c {
		v, err := src.Lookup(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotSet) {
			return "", err
		}
	}
	return "", ErrNotSet
}

// allowlist hides every name outside a fixed set.
type allowlist struct {
	src   Source
	names []string
}

// Allowed restricts src to the given names. Other names report ErrNotSet so
// callers cannot probe which credentials exist.
func Allowed(src Source, names []string) Source {
	return &allowlist{src: src, names: slices.Clone(names)}
}

func (a *allowlist) Lookup(ctx context.Context, name string) (string, error) {
	if !slices.Contains(a.names, name) {
		return "", ErrNotSet
	}
	return a.src.Lookup(ctx, name)
}

// CachedSource memoizes lookups for a fixed TTL. Entries are replaced
// wholesale on refresh.
type CachedSource struct {
	src   Source
	cache *cache.Cache
}

// NewCachedSource wraps src with a go-cache of the given TTL.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		src:   src,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedSource) Lookup(ctx context.Context, name string) (string, error) {
	if v, ok := c.cache.Get(name); ok {
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	v, err := c.src.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(name, v)
	return v, nil
}

// Invalidate drops every cached value, forcing the next lookups upstream.
func (c *CachedSource) Invalidate() {
	c.cache.Flush()
}

// RemoteSource asks a get-secret endpoint for values: POST {"name"} answered
// by {"value"}, or 404 when the secret is unset.
type RemoteSource struct {
	client *resty.Client
	url    string
}

// NewRemoteSource builds a client for the endpoint at url. apiKey, when set, is
// sent both as the apikey header and as a bearer token.
func NewRemoteSource(url, apiKey string, timeout time.Duration) *RemoteSource {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("apikey", apiKey).SetAuthToken(apiKey)
	}
	return &RemoteSource{client: client, url: url}
}

// Client exposes the underlying resty client, mainly for tests.
func (r *RemoteSource) Client() *resty.Client { return r.client }

type secretRequest struct {
	Name string `json:"name"`
}

type secretResponse struct {
	Value string `json:"value"`
	Error string `json:"error,omitempty"`
}

func (r *RemoteSource) Lookup(ctx context.Context, name string) (string, error) {
	var out secretResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(secretRequest{Name: name}).
		SetResult(&out).
		SetError(&out).
		Post(r.url)
	if err != nil {
		return "", errors.New(fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)).
			Component(componentSecrets).
			Context("secret", name).
			Build()
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return "", ErrNotSet
	case resp.IsError():
		return "", errors.New(ErrRemoteUnavailable).
			Component(componentSecrets).
			Context("secret", name).
			Context("status", resp.StatusCode()).
			Context("detail", strings.TrimSpace(out.Error)).
			Build()
	case out.Value == "":
		return "", ErrNotSet
	}
	return out.Value, nil
}
