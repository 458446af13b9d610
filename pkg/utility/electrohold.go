package utility

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/common"
	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

const (
	// DefaultElectroholdURL is the regulated household price page.
	DefaultElectroholdURL = "https://electrohold.bg/bg/sales/domakinstva/snabdyavane-po-regulirani-ceni/"

	maxDocumentBytes = 4 << 20
)

// Electrohold fetches the Electrohold regulated price page over HTTP.
type Electrohold struct {
	pageURL string
	client  *http.Client
	now     func() time.Time
}

// NewElectrohold returns a source for pageURL using client.
func NewElectrohold(pageURL string, client *http.Client) *Electrohold {
	return &Electrohold{
		pageURL: pageURL,
		client:  client,
		now:     time.Now,
	}
}

// Configured sets up flags for the Electrohold source and returns the instance.
func Configured() *Electrohold {
	e := NewElectrohold("", nil)
	pageURL := lflag.String("electrohold-url", DefaultElectroholdURL, "URL of the Electrohold regulated price page")
	timeout := lflag.Duration("fetch-timeout", 10*time.Second, "Timeout for fetching the price page")

	lflag.Do(func() {
		e.pageURL = *pageURL
		e.client = common.HTTPClient(*timeout)
		if err := e.Validate(); err != nil {
			panic(fmt.Sprintf("electrohold source validation failed: %v", err))
		}
	})

	return e
}

// Validate ensures the configuration is valid.
func (e *Electrohold) Validate() error {
	if e.pageURL == "" {
		return fmt.Errorf("electrohold-url is required")
	}
	u, err := url.Parse(e.pageURL)
	if err != nil {
		return fmt.Errorf("failed to parse electrohold url (%s): %w", e.pageURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("electrohold url must be http(s): %s", e.pageURL)
	}
	return nil
}

// URL implements Source.
func (e *Electrohold) URL() string {
	return e.pageURL
}

// Fetch implements Source.
func (e *Electrohold) Fetch(ctx context.Context) (types.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", e.pageURL, nil)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("%w: failed to create request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "text/html")
	log.Ctx(ctx).DebugContext(ctx, "fetching price page", slog.String("url", e.pageURL))

	resp, err := e.client.Do(req)
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.RawDocument{}, fmt.Errorf("%w: price page returned status: %d", ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return types.RawDocument{}, fmt.Errorf("%w: failed to read body: %w", ErrFetch, err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched price page",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	return types.RawDocument{
		Body:      string(body),
		URL:       e.pageURL,
		FetchedAt: e.now(),
	}, nil
}
