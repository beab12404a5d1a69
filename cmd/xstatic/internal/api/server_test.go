package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthServer(t *testing.T) {
	hs := NewHealthServer("127.0.0.1:0")
	assert.Nil(t, hs.Addr())
	require.NoError(t, hs.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, hs.Stop(ctx))
	}()

	base := "http://" + hs.Addr().String()

	code, body := get(t, base+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, base+"/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body)

	hs.SetReady(true)
	code, body = get(t, base+"/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)
}

func TestHealthServerBindError(t *testing.T) {
	first := NewHealthServer("127.0.0.1:0")
	require.NoError(t, first.Start())
	defer first.Stop(context.Background())

	second := NewHealthServer(first.Addr().String())
	assert.Error(t, second.Start())
}
