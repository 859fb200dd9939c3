// Package serpapi is a client for the SerpApi Google Lens and Google
// Shopping engines.
package serpapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultEndpoint = "https://serpapi.com/search.json"

// ErrNoAPIKey is returned when the client has no API key.
var ErrNoAPIKey = errors.New("serpapi: no API key configured")

type Client struct {
	http     *whttp.Client
	apiKey   string
	endpoint string
	log      logging.Logger
}

func NewClient(hc *whttp.Client, apiKey, endpoint string, log logging.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{http: hc, apiKey: apiKey, endpoint: endpoint, log: logging.OrNop(log)}
}

// Lens runs a reverse image search for a hosted image and returns the visual
// matches in upstream order. Matches without a link are dropped.
func (c *Client) Lens(ctx context.Context, imageURL string) ([]match.LensMatch, error) {
	body, err := c.search(ctx, url.Values{
		"engine": {"google_lens"},
		"url":    {imageURL},
		"type":   {"visual_matches"},
	})
	if err != nil {
		return nil, err
	}

	var out []match.LensMatch
	gjson.GetBytes(body, "visual_matches").ForEach(func(_, v gjson.Result) bool {
		link := v.Get("link").String()
		if link == "" {
			return true
		}
		title := v.Get("title").String()
		if title == "" {
			title = "Unknown"
		}
		out = append(out, match.LensMatch{
			Title:      title,
			Link:       link,
			Source:     v.Get("source").String(),
			Thumbnail:  match.StringPtr(v.Get("thumbnail").String()),
			PriceLabel: match.StringPtr(v.Get("price.value").String()),
		})
		return true
	})
	c.log.Debugf("Lens search returned %d visual matches", len(out))
	return out, nil
}

// Shopping runs a Google Shopping query. Results without a title or link
// are dropped.
func (c *Client) Shopping(ctx context.Context, query string) ([]match.LensMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("serpapi: empty shopping query")
	}
	body, err := c.search(ctx, url.Values{
		"engine": {"google_shopping"},
		"q":      {query},
		"num":    {"20"},
	})
	if err != nil {
		return nil, err
	}

	var out []match.LensMatch
	gjson.GetBytes(body, "shopping_results").ForEach(func(_, v gjson.Result) bool {
		title := v.Get("title").String()
		link := v.Get("link").String()
		if link == "" {
			link = v.Get("product_link").String()
		}
		if title == "" || link == "" {
			return true
		}
		source := v.Get("source").String()
		if source == "" {
			source = "Unknown"
		}
		out = append(out, match.LensMatch{
			Title:      title,
			Link:       link,
			Source:     source,
			Thumbnail:  match.StringPtr(v.Get("thumbnail").String()),
			PriceLabel: match.StringPtr(v.Get("price").String()),
		})
		return true
	})
	c.log.Debugf("Shopping search %q returned %d results", query, len(out))
	return out, nil
}

func (c *Client) search(ctx context.Context, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	params.Set("api_key", c.apiKey)

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Service: "serpapi",
		Method:  "GET",
		URL:     c.endpoint,
		Query:   params,
	}, c.http)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(res.Body) {
		return nil, fmt.Errorf("serpapi: invalid JSON response")
	}
	// SerpApi reports some failures with a 200 and an "error" field.
	if e := gjson.GetBytes(res.Body, "error"); e.Exists() && e.String() != "" {
		if strings.Contains(strings.ToLower(e.String()), "hasn't returned any results") {
			return res.Body, nil
		}
		return nil, fmt.Errorf("serpapi: %s", e.String())
	}
	return res.Body, nil
}
