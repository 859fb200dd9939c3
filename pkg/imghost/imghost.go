// Package imghost uploads images to imgbb and returns their public URL.
package imghost

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"net/url"

	"github.com/findly-app/findly/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint = "https://api.imgbb.com/1/upload"
	// JPEGQuality is used when re-encoding non-JPEG input.
	JPEGQuality = 80
)

var (
	// ErrMissingURL is returned when the upload response carries no image URL.
	ErrMissingURL = errors.New("imgbb response did not contain image URL")
	ErrNoAPIKey   = errors.New("imgbb: no API key configured")
	ErrEmptyImage = errors.New("empty image")
)

type Client struct {
	http     *whttp.Client
	apiKey   string
	endpoint string
}

func NewClient(hc *whttp.Client, apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{http: hc, apiKey: apiKey, endpoint: endpoint}
}

// Upload posts a JPEG as a base64 form field and returns the hosted URL.
func (c *Client) Upload(ctx context.Context, jpegData []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	if len(jpegData) == 0 {
		return "", ErrEmptyImage
	}

	form := url.Values{"image": {base64.StdEncoding.EncodeToString(jpegData)}}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Service:     "imgbb",
		Method:      http.MethodPost,
		URL:         c.endpoint,
		Query:       url.Values{"key": {c.apiKey}},
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	}, c.http)
	if err != nil {
		return "", err
	}

	hosted := gjson.GetBytes(res.Body, "data.url").String()
	if hosted == "" {
		return "", ErrMissingURL
	}
	if u, err := url.Parse(hosted); err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingURL, hosted)
	}
	return hosted, nil
}

// PrepareJPEG returns data as JPEG. JPEG input is passed through; PNG and
// GIF are re-encoded at JPEGQuality.
func PrepareJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	if format == "jpeg" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
