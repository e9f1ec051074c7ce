package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthProvider_QueryCumulative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/steps/cumulative", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("start"))
		assert.NotEmpty(t, r.URL.Query().Get("end"))
		w.Write([]byte(`{"cumulative": 1234}`))
	}))
	defer srv.Close()

	p := NewHealthProvider(srv.URL, time.Second)
	value, err := p.QueryCumulative(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), value)
}

func TestHealthProvider_AuthorizationDenied(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		p := NewHealthProvider(srv.URL, time.Second)
		_, err := p.QueryCumulative(context.Background(), time.Now(), time.Now())
		assert.ErrorIs(t, err, ErrAuthorizationDenied, "status %d", status)
		srv.Close()
	}
}

func TestHealthProvider_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHealthProvider(srv.URL, time.Second)
	_, err := p.QueryCumulative(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHealthProvider_ConnectionRefused(t *testing.T) {
	// Server closed before the query: the transport error must degrade
	// to ErrUnavailable, never surface raw.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewHealthProvider(srv.URL, time.Second)
	_, err := p.QueryCumulative(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHealthProvider_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`steps: lots`))
	}))
	defer srv.Close()

	p := NewHealthProvider(srv.URL, time.Second)
	_, err := p.QueryCumulative(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHealthProvider_NegativeCumulativeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cumulative": -7}`))
	}))
	defer srv.Close()

	p := NewHealthProvider(srv.URL, time.Second)
	_, err := p.QueryCumulative(context.Background(), time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}
