package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluxgallery/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.ImageGenConfig{
		BaseURL:   srv.URL,
		APIKey:    "fal-key",
		Model:     "fal-ai/flux/dev",
		ImageSize: "square_hd",
	})
}

func TestGenerateHostedURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fal-ai/flux/dev", r.URL.Path)
		assert.Equal(t, "Key fal-key", r.Header.Get("Authorization"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a castle", req.Prompt)
		assert.Equal(t, "square_hd", req.ImageSize)
		assert.Equal(t, 1, req.NumImages)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]any{
				{"url": "https://fal.media/files/abc.png", "content_type": "image/png"},
			},
		})
	})

	result, err := client.Generate(context.Background(), "a castle")
	require.NoError(t, err)
	assert.Equal(t, "https://fal.media/files/abc.png", result.URL)
	assert.Equal(t, "image/png", result.ContentType)
	assert.Nil(t, result.Data)
}

func TestGenerateInlineDataURL(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]any{{"url": dataURL}},
		})
	})

	result, err := client.Generate(context.Background(), "a castle")
	require.NoError(t, err)
	assert.Equal(t, payload, result.Data)
	assert.Equal(t, "image/png", result.ContentType)
}

func TestGenerateBackendError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "prompt rejected"})
	})

	_, err := client.Generate(context.Background(), "a castle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestGenerateNoImages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"images": []any{}})
	})

	_, err := client.Generate(context.Background(), "a castle")
	require.ErrorIs(t, err, ErrNoImage)
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"fal.media", "v3.fal.media"}

	assert.True(t, HostAllowed("https://fal.media/files/a.png", allowed))
	assert.True(t, HostAllowed("https://v3.fal.media/files/a.png", allowed))
	assert.True(t, HostAllowed("https://FAL.MEDIA/files/a.png", allowed))
	assert.False(t, HostAllowed("https://evil.example.com/a.png", allowed))
	assert.False(t, HostAllowed("https://notfal.media.example.com/a.png", allowed))
	assert.False(t, HostAllowed("data:image/png;base64,AAAA", allowed))
	assert.False(t, HostAllowed("::not a url::", allowed))
}

func TestDecodeDataURLPercentEncoded(t *testing.T) {
	data, contentType, err := decodeDataURL("data:image/svg+xml,%3Csvg%3E")
	require.NoError(t, err)
	assert.Equal(t, []byte("<svg>"), data)
	assert.Equal(t, "image/svg+xml", contentType)
}
