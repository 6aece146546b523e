package assets

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Transport fetches asset files from a remote base.
type Transport interface {
	// Head returns the HTTP status for url without downloading the body.
	Head(ctx context.Context, url string) (int, error)
	// Get opens the body of url. The caller closes it.
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns a Transport with a bounded client.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: 60 * time.Second}}
}

func (t *HTTPTransport) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// Head issues a HEAD request and returns the status code.
func (t *HTTPTransport) Head(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build HEAD request")
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Get issues a GET request and returns the body for 2xx responses.
func (t *HTTPTransport) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build GET request")
	}
	resp, err := t.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
