package utility

import (
	"context"
	"errors"

	"github.com/raterudder/electrohold/pkg/types"
)

// ErrFetch marks a failed retrieval of the pricing page: a transport error, a
// timeout or a non-2xx response.
var ErrFetch = errors.New("fetch failed")

// Source retrieves the raw pricing document.
type Source interface {
	// Fetch returns the latest pricing page. Any error wraps ErrFetch.
	Fetch(ctx context.Context) (types.RawDocument, error)

	// URL returns the page the source reads from.
	URL() string
}
