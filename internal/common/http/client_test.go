package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"title":"Gruta do Lago Azul"}]}`))
	}))
	defer server.Close()

	var out struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	require.NoError(t, NewClient(time.Second).GetJSON(context.Background(), server.URL, &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Gruta do Lago Azul", out.Items[0].Title)
}

func TestGetJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(time.Second).GetJSON(context.Background(), server.URL, &out)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestGetJSON_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out map[string]interface{}
	err := NewClient(5*time.Second).GetJSON(ctx, server.URL, &out)
	require.Error(t, err)
	assert.True(t, IsTimeout(ctx, err))
}

func TestIsTimeout_NilError(t *testing.T) {
	assert.False(t, IsTimeout(context.Background(), nil))
	assert.False(t, IsTimeout(context.Background(), errors.New("refused")))
}
