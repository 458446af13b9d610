package utility

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/electrohold/pkg/common"
)

func TestElectrohold(t *testing.T) {
	t.Run("Fetch", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GET", r.Method)
			assert.Equal(t, "/prices", r.URL.Path)
			assert.Equal(t, common.UserAgent(), r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<table><tr><td>Дневна</td><td>0,12478 €</td></tr></table>"))
		}))
		defer ts.Close()

		fixed := time.Date(2025, 7, 15, 7, 0, 0, 0, time.UTC)
		e := NewElectrohold(ts.URL+"/prices", common.HTTPClient(5*time.Second))
		e.now = func() time.Time { return fixed }

		doc, err := e.Fetch(context.Background())
		require.NoError(t, err)
		assert.Contains(t, doc.Body, "0,12478 €")
		assert.Equal(t, ts.URL+"/prices", doc.URL)
		assert.Equal(t, fixed, doc.FetchedAt)
	})

	t.Run("Non2xx", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		e := NewElectrohold(ts.URL, ts.Client())
		_, err := e.Fetch(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)
		assert.ErrorContains(t, err, "503")
	})

	t.Run("Timeout", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer ts.Close()

		e := NewElectrohold(ts.URL, common.HTTPClient(20*time.Millisecond))
		_, err := e.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("NetworkError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		addr := ts.URL
		ts.Close()

		e := NewElectrohold(addr, ts.Client())
		_, err := e.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, NewElectrohold(DefaultElectroholdURL, nil).Validate())
		assert.ErrorContains(t, NewElectrohold("", nil).Validate(), "required")
		assert.Error(t, NewElectrohold("ftp://example.com", nil).Validate())
		assert.Equal(t, DefaultElectroholdURL, NewElectrohold(DefaultElectroholdURL, nil).URL())
	})
}
