// Package engineclient is the thin HTTP boundary every other package in
// this module calls through. Credential acquisition, the wire codec and
// the transport itself are external collaborators per §1/§6 — this package
// only shapes the request (headers, timeouts, tracing) around whatever
// *resty.Client and TokenCredential it is given.
package engineclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// APIVersion is the header value every engine request carries, per §6.
const APIVersion = "2024-12-12"

const (
	defaultRequestTimeout = 60 * time.Second
	defaultConnectTimeout = 60 * time.Second
)

// TokenCredential is the minimum surface this module needs from whatever
// credential stack the caller wires in (client secret, managed identity,
// device code, …). Acquisition itself is out of scope per §1.
type TokenCredential interface {
	GetToken(ctx context.Context, scopes ...string) (string, error)
}

// TokenProviderResult is what a Fabric-mode service-to-service token
// provider returns, per §4.1.
type TokenProviderResult struct {
	Scheme string
	Token  string
}

// TokenProvider is the Fabric private-link async token function from §4.1.
type TokenProvider func(ctx context.Context) (TokenProviderResult, error)

// Client issues the HTTP calls enumerated in §6 against either the
// engine's query endpoint or its DM (data-management) endpoint.
type Client struct {
	http *resty.Client
	log  *zap.Logger

	engineURL string
	dmURL     string
	cred      TokenCredential

	// Fabric private-link mode, per §4.1: when set, these take priority
	// over cred for the Authorization header, and accessContext is sent
	// as an additional header.
	fabricTokenProvider TokenProvider
	fabricAccessContext string
}

// Option customizes a Client at construction.
type Option func(*Client)

// WithFabricMode enables the two additional knobs §4.1 describes for
// Fabric private-link deployments.
func WithFabricMode(provider TokenProvider, accessContext string) Option {
	return func(c *Client) {
		c.fabricTokenProvider = provider
		c.fabricAccessContext = accessContext
	}
}

// WithTimeouts overrides the default 60s request timeout (§5). Connect
// timeout is enforced by the caller's context deadline on each call, since
// resty's transport already shares one dial budget with the overall
// request timeout in practice.
func WithTimeouts(request, _connect time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(request)
	}
}

// New builds a Client. engineURL is the query-surface base
// (streaming ingest, status); dmURL is the data-management base
// (configuration, queued-ingestion submission).
func New(engineURL, dmURL string, cred TokenCredential, log *zap.Logger, opts ...Option) *Client {
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	rc := resty.NewWithClient(httpClient).
		SetTimeout(defaultRequestTimeout).
		SetHeader("x-ms-version", APIVersion)

	c := &Client{
		http:      rc,
		log:       log,
		engineURL: engineURL,
		dmURL:     dmURL,
		cred:      cred,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// authorize attaches the Authorization (and, in Fabric mode, the access
// context) headers to req.
func (c *Client) authorize(ctx context.Context, req *resty.Request) error {
	if c.fabricTokenProvider != nil {
		result, err := c.fabricTokenProvider(ctx)
		if err != nil {
			return fmt.Errorf("fabric token provider: %w", err)
		}
		req.SetHeader("Authorization", fmt.Sprintf("%s %s", result.Scheme, result.Token))
		if c.fabricAccessContext != "" {
			req.SetHeader("x-ms-access-context", c.fabricAccessContext)
		}
		return nil
	}

	if c.cred == nil {
		return nil
	}
	token, err := c.cred.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("token credential: %w", err)
	}
	req.SetHeader("Authorization", "Bearer "+token)
	return nil
}

// NewRequest returns a resty.Request bound to ctx and pre-authorized
// against it; the Client's request timeout applies.
func (c *Client) NewRequest(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// EngineURL returns the base URL for the engine's query surface.
func (c *Client) EngineURL() string { return c.engineURL }

// DMURL returns the base URL for the engine's data-management surface.
func (c *Client) DMURL() string { return c.dmURL }

// Logger exposes the injected structured logger to sibling packages that
// hold a Client (streaming, queued, resources).
func (c *Client) Logger() *zap.Logger { return c.log }
