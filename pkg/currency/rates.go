package currency

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/findly-app/findly/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultRatesEndpoint = "https://api.exchangerate-api.com/v4/latest"

// RatesClient fetches rates from an exchangerate-api style endpoint:
// GET {endpoint}/{BASE} -> {"base": "...", "rates": {"EUR": 0.92, ...}}.
type RatesClient struct {
	http     *whttp.Client
	endpoint string
}

func NewRatesClient(client *whttp.Client, endpoint string) *RatesClient {
	if endpoint == "" {
		endpoint = DefaultRatesEndpoint
	}
	return &RatesClient{http: client, endpoint: strings.TrimRight(endpoint, "/")}
}

func (r *RatesClient) Rates(ctx context.Context, base string) (map[string]float64, error) {
	base = NormalizeCode(base)
	if base == "" {
		return nil, fmt.Errorf("rates: empty base currency")
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Service: "rates",
		Method:  "GET",
		URL:     r.endpoint + "/" + url.PathEscape(base),
	}, r.http)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(res.Body) {
		return nil, fmt.Errorf("rates: invalid JSON response")
	}

	rates := make(map[string]float64)
	gjson.GetBytes(res.Body, "rates").ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			rates[NormalizeCode(key.String())] = value.Float()
		}
		return true
	})
	if len(rates) == 0 {
		return nil, fmt.Errorf("rates: response for %s has no rates", base)
	}
	return rates, nil
}
