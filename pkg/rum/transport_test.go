package rum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	format "finsite/pkg/formats/rum"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Send(t *testing.T) {
	var got format.Batch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil, nil)
	err := tr.Send(context.Background(), format.Batch{Data: []format.Data{{SessionID: "s1", URL: "/"}}, Timestamp: 42})
	require.NoError(t, err)

	require.Len(t, got.Data, 1)
	assert.Equal(t, "s1", got.Data[0].SessionID)
	assert.Equal(t, 42.0, got.Timestamp)
}

func TestHTTPTransport_SendRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil, nil)
	err := tr.Send(context.Background(), format.Batch{})
	assert.Error(t, err)
}

func TestHTTPTransport_BeaconIsDetached(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, nil, nil)
	assert.True(t, tr.Beacon(format.Batch{Data: []format.Data{{SessionID: "s1"}}}))
	tr.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
