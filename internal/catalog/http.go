package catalog

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/techstore/internal/domain/voucher"
)

const maxCatalogBytes = 16 << 20

var _ voucher.Catalog = (*HTTPSource)(nil)

// HTTPSource fetches the catalog from a storefront endpoint such as
// GET /api/voucher.
type HTTPSource struct {
	client *http.Client
	url    string
}

// NewHTTPSource returns an HTTPSource for url. A nil client gets an
// instrumented client with a 10s timeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSource{client: client, url: url}
}

// List downloads and decodes the catalog. Transport failures and non-200
// responses wrap voucher.ErrCatalogUnavailable.
func (s *HTTPSource) List(ctx context.Context) ([]voucher.Voucher, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create catalog request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("fetch %s: %v: %w", s.url, err, voucher.ErrCatalogUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code %d: %w", resp.StatusCode, voucher.ErrCatalogUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, errors.Errorf("read body: %v: %w", err, voucher.ErrCatalogUnavailable)
	}

	list, err := Decode(body)
	if err != nil {
		return nil, errors.Wrapf(err, "decode catalog from %s", s.url)
	}
	return list, nil
}
