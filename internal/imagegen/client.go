package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"fluxgallery/internal/config"
)

var ErrNoImage = errors.New("image backend returned no image")

type GenerateRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size,omitempty"`
	NumImages int    `json:"num_images,omitempty"`
}

type generateResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Detail string `json:"detail"`
}

// GeneratedImage is one backend result: either a hosted URL or an inline
// payload decoded from a data URL.
type GeneratedImage struct {
	URL         string
	ContentType string
	Data        []byte
}

// Client calls the flux image-generation backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	imageSize  string
}

func NewClient(cfg config.ImageGenConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		imageSize:  cfg.ImageSize,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Generate(ctx context.Context, prompt string) (GeneratedImage, error) {
	body, err := json.Marshal(GenerateRequest{
		Prompt:    prompt,
		ImageSize: c.imageSize,
		NumImages: 1,
	})
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return GeneratedImage{}, fmt.Errorf("read response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return GeneratedImage{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := parsed.Detail
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return GeneratedImage{}, fmt.Errorf("image backend: %s", detail)
	}
	if len(parsed.Images) == 0 || parsed.Images[0].URL == "" {
		return GeneratedImage{}, ErrNoImage
	}

	first := parsed.Images[0]
	result := GeneratedImage{
		URL:         first.URL,
		ContentType: first.ContentType,
	}

	if strings.HasPrefix(first.URL, "data:") {
		data, contentType, err := decodeDataURL(first.URL)
		if err != nil {
			return GeneratedImage{}, fmt.Errorf("decode inline image: %w", err)
		}
		result.Data = data
		if result.ContentType == "" {
			result.ContentType = contentType
		}
	}

	return result, nil
}

// HostAllowed reports whether the hosted URL's hostname is on the configured
// allow-list. Inline payloads and disallowed hosts get re-hosted on our own
// object store.
func HostAllowed(rawURL string, allowed []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	for _, host := range allowed {
		if strings.EqualFold(u.Hostname(), strings.TrimSpace(host)) {
			return true
		}
	}
	return false
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	rest := strings.TrimPrefix(dataURL, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", errors.New("malformed data url")
	}

	meta := rest[:comma]
	payload := rest[comma+1:]

	contentType := meta
	base64Encoded := false
	if idx := strings.Index(meta, ";"); idx >= 0 {
		contentType = meta[:idx]
		base64Encoded = strings.Contains(meta[idx:], "base64")
	}

	if !base64Encoded {
		unescaped, err := url.QueryUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("unescape payload: %w", err)
		}
		return []byte(unescaped), contentType, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}
	return data, contentType, nil
}
