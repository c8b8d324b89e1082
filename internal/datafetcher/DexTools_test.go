package datafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexToolsFetchTvl(t *testing.T) {
	t.Run("returns_liquidity_and_sends_api_key", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("X-API-KEY")
			assert.Equal(t, "/pool/ether/0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640/liquidity", r.URL.Path)
			w.Write([]byte(`{"statusCode": 200, "data": {"liquidity": 123456.78, "reserves": {"mainToken": 30.5, "sideToken": 61000}}}`))
		}))
		defer server.Close()

		client := NewDexToolsClient(server.URL, "test-key", 5*time.Second)
		tvl, err := client.FetchTvl(context.Background(), "ether", "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640")
		require.NoError(t, err)
		assert.Equal(t, 123456.78, tvl)
		assert.Equal(t, "test-key", gotKey)
	})

	t.Run("no_key_sends_no_header", func(t *testing.T) {
		headerPresent := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, headerPresent = r.Header["X-Api-Key"]
			w.Write([]byte(`{"statusCode": 200, "data": {"liquidity": 1000}}`))
		}))
		defer server.Close()

		client := NewDexToolsClient(server.URL, "", 5*time.Second)
		_, err := client.FetchTvl(context.Background(), "ether", "0xabc")
		require.NoError(t, err)
		assert.False(t, headerPresent)
	})

	t.Run("embedded_error_status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"statusCode": 403, "data": {}}`))
		}))
		defer server.Close()

		client := NewDexToolsClient(server.URL, "bad-key", 5*time.Second)
		_, err := client.FetchTvl(context.Background(), "ether", "0xabc")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderResponse)
		assert.Contains(t, err.Error(), "403")
	})

	t.Run("negative_liquidity_is_unusable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"statusCode": 200, "data": {"liquidity": -50}}`))
		}))
		defer server.Close()

		client := NewDexToolsClient(server.URL, "key", 5*time.Second)
		_, err := client.FetchTvl(context.Background(), "ether", "0xabc")
		assert.ErrorIs(t, err, ErrProviderResponse)
	})

	t.Run("zero_liquidity_is_legal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"statusCode": 200, "data": {"liquidity": 0}}`))
		}))
		defer server.Close()

		client := NewDexToolsClient(server.URL, "key", 5*time.Second)
		tvl, err := client.FetchTvl(context.Background(), "ether", "0xabc")
		require.NoError(t, err)
		assert.Equal(t, 0.0, tvl)
	})

	t.Run("empty_arguments_rejected", func(t *testing.T) {
		client := NewDexToolsClient("http://127.0.0.1:0", "key", time.Second)

		_, err := client.FetchTvl(context.Background(), "", "0xabc")
		assert.Error(t, err)

		_, err = client.FetchTvl(context.Background(), "ether", "")
		assert.Error(t, err)
	})
}
