package track

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-risk/internal/boost"
)

func TestReport_PostsEvent(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rep := New(srv.URL, "provider-risk")
	require.True(t, rep.Enabled())

	rep.Report(context.Background(), Event{
		BundleKey:   "20260210_143005",
		TargetRule:  "claims_denial",
		TestMetrics: boost.Metrics{ROCAUC: 0.9},
	})

	assert.Equal(t, "provider-risk", received.Project)
	assert.Equal(t, "20260210_143005", received.BundleKey)
	assert.Equal(t, 0.9, received.TestMetrics.ROCAUC)
	assert.False(t, received.Timestamp.IsZero())
}

func TestReport_DisabledWithoutURL(t *testing.T) {
	rep := New("", "provider-risk")
	assert.False(t, rep.Enabled())
	// Must not panic or block.
	rep.Report(context.Background(), Event{BundleKey: "x"})
}

func TestReport_SwallowsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rep := New(srv.URL, "provider-risk")
	// Delivery failure is logged, not returned.
	rep.Report(context.Background(), Event{BundleKey: "x"})
}

func TestReport_SwallowsConnectionErrors(t *testing.T) {
	rep := New("http://127.0.0.1:1/unreachable", "provider-risk")
	rep.Report(context.Background(), Event{BundleKey: "x"})
}
