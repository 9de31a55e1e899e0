// Package resolver provides did.Resolver implementations: an HTTP client for
// a universal-resolver style endpoint, a TTL cache in front of any resolver,
// and a static in-memory resolver.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/did"
)

// DefaultTimeout bounds a single resolution request.
const DefaultTimeout = 10 * time.Second

const maxDocumentSize = 1 << 20

// HTTP resolves documents with GET <baseURL>/<did>.
type HTTP struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

type Option func(*HTTP)

func WithTimeout(d time.Duration) Option {
	return func(h *HTTP) {
		h.timeout = d
	}
}

// WithHTTPClient replaces the default otelhttp instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) {
		h.client = c
	}
}

func NewHTTP(baseURL string, opts ...Option) (*HTTP, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errs.Errorf(errs.InvalidArgument, "resolver.NewHTTP", "base URL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errs.New(errs.InvalidArgument, "resolver.NewHTTP", err)
	}

	h := &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return h, nil
}

func (h *HTTP) Resolve(id did.DID) (*did.Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.ResolveContext(ctx, id)
}

// ResolveContext is Resolve bounded by ctx.
func (h *HTTP) ResolveContext(ctx context.Context, id did.DID) (*did.Document, error) {
	const op = "resolver.HTTP.Resolve"

	if id.IsZero() {
		return nil, errs.Errorf(errs.InvalidArgument, op, "empty DID")
	}

	apiURL := h.baseURL + "/" + url.PathEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		log.WithFields(log.Fields{"did": id.String(), "url": apiURL}).WithError(err).Warn("DID resolution request failed")
		return nil, errs.New(errs.NotFound, op, fmt.Errorf("failed to make HTTP request to DID resolver: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, errs.Errorf(errs.NotFound, op, "DID %s not found", id)
	case resp.StatusCode != http.StatusOK:
		return nil, errs.Errorf(errs.NotFound, op, "DID resolver API returned non-200 status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, errs.New(errs.NotFound, op, fmt.Errorf("failed to read response body from DID resolver: %w", err))
	}

	// Universal resolvers wrap the document in a resolution result.
	if wrapped := gjson.GetBytes(body, "didDocument"); wrapped.IsObject() {
		body = []byte(wrapped.Raw)
	}

	doc, err := did.ParseDocument(body)
	if err != nil {
		return nil, errs.New(errs.Malformed, op, err)
	}
	subject, _ := doc.Subject()
	if subject != id {
		return nil, errs.Errorf(errs.Malformed, op, "resolver returned document %s for %s", subject, id)
	}

	log.WithField("did", id.String()).Debug("resolved DID document")
	return doc, nil
}
