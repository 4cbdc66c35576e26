package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title> NovaGraph </title></head><body></body></html>`))
	}))
	defer srv.Close()

	res, err := Check(context.Background(), srv.URL+"/app", 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "NovaGraph", res.Title)
	assert.Equal(t, "127.0.0.1", res.Host)
	assert.Equal(t, srv.URL+"/app", res.FinalURL)
}

func TestCheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res, err := Check(context.Background(), srv.URL, 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := Check(context.Background(), target, 2*time.Second)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestCheckInvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "not a url", "http://"} {
		_, err := Check(context.Background(), raw, time.Second)
		require.Error(t, err, raw)
		assert.NotErrorIs(t, err, ErrUnreachable, raw)
	}
}
