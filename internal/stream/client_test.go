package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_CurrentAndRefresh(t *testing.T) {
	var refreshed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/gold/current":
			w.Write([]byte(`{"success":true,"data":{"id":"a","price":2040.5,"source":"fallback"},"timestamp":1}`))
		case r.Method == http.MethodPost && r.URL.Path == "/gold/refresh":
			refreshed = true
			w.Write([]byte(`{"success":true,"message":"Price refreshed","data":{"id":"b","price":2041},"timestamp":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL + "/")
	obs, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2040.5, obs.Price)
	assert.Equal(t, "fallback", obs.Source)

	obs, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "b", obs.ID)
}

func TestSeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"price":2001.25}}`))
	}))
	defer srv.Close()

	store := NewStore(0)
	require.NoError(t, Seed(context.Background(), NewAPIClient(srv.URL), store))
	assert.Equal(t, "$2001.25", store.FormattedPrice())
	assert.Len(t, store.History(), 1)
}

func TestSeedFresh_UsesRefresh(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.Write([]byte(`{"success":true,"message":"Price refreshed","data":{"price":2077.4}}`))
	}))
	defer srv.Close()

	store := NewStore(0)
	require.NoError(t, SeedFresh(context.Background(), NewAPIClient(srv.URL), store))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/gold/refresh", path)
	assert.Equal(t, "$2077.40", store.FormattedPrice())
}

func TestSeed_FailureRecordedOnStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"no data"}`))
	}))
	defer srv.Close()

	store := NewStore(0)
	err := Seed(context.Background(), NewAPIClient(srv.URL), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data")
	assert.Equal(t, err, store.Err())
	assert.Equal(t, "--", store.FormattedPrice())
}
