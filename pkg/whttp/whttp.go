package whttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/findly-app/findly/internal/metrics"
	"github.com/findly-app/findly/pkg/logging"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	USER_AGENT      = "findly/1.0 (+https://github.com/findly-app/findly)"
	defaultTimeout  = 30 * time.Second
	maxBodyBytes    = 10 * 1024 * 1024
	maxErrorBodyLen = 512
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	// Service names the upstream for metrics and logs ("serpapi", "imgbb", ...).
	Service     string
	URL         string
	Method      string
	Query       url.Values
	Headers     []WHTTPHeader
	Body        []byte
	ContentType string
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	Body           []byte
	BodyString     string
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Service    string
	StatusCode int
	Title      string
	Body       string
}

func (e *StatusError) Error() string {
	detail := e.Title
	if detail == "" {
		detail = strings.TrimSpace(e.Body)
	}
	if len(detail) > maxErrorBodyLen {
		detail = detail[:maxErrorBodyLen]
	}
	if detail == "" {
		detail = "no body"
	}
	return fmt.Sprintf("%s error (%d): %s", e.Service, e.StatusCode, detail)
}

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Proxy   string
	// RetryMax is the number of retries after the first attempt. Zero means a
	// single attempt per call.
	RetryMax int
	// RequestsPerSecond paces outgoing requests across all callers. Zero
	// means no pacing.
	RequestsPerSecond float64
	Log               logging.Logger
}

// Client is a thin wrapper over a retryablehttp client shared by every
// upstream API package.
type Client struct {
	rc      *retryablehttp.Client
	limiter *rate.Limiter
}

// NewClient builds a Client. An invalid proxy URL is reported as an error.
func NewClient(opts Options) (*Client, error) {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = leveledLogger{log: logging.OrNop(opts.Log)}
	// Hand non-2xx responses back to the caller instead of a generic
	// "giving up" error so the body can be inspected.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rc.HTTPClient.Timeout = timeout

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		rc.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	c := &Client{rc: rc}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

// NewFromHTTPClient wraps an existing *http.Client, mostly for tests.
func NewFromHTTPClient(hc *http.Client) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if hc != nil {
		rc.HTTPClient = hc
	}
	return &Client{rc: rc}
}

// SendHTTPRequest performs wReq and returns the buffered response. A non-2xx
// status yields both the response and a *StatusError.
func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *Client) (wRes *WHTTPRes, err error) {
	if client == nil {
		client = NewFromHTTPClient(nil)
	}
	service := wReq.Service
	if service == "" {
		service = "http"
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	target := wReq.URL
	if len(wReq.Query) > 0 {
		u, perr := url.Parse(wReq.URL)
		if perr != nil {
			return nil, fmt.Errorf("%s: invalid URL: %w", service, perr)
		}
		q := u.Query()
		for k, vs := range wReq.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body interface{}
	if wReq.Body != nil {
		body = bytes.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", service, err)
	}

	// Set common headers
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")
	if wReq.ContentType != "" {
		req.Header.Set("Content-Type", wReq.ContentType)
	}

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	if client.limiter != nil {
		if err := client.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", service, err)
		}
	}

	resp, err := client.rc.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(service, "error").Inc()
		return nil, fmt.Errorf("%s: read body: %w", service, err)
	}

	wRes = &WHTTPRes{
		StatusCode:     resp.StatusCode,
		Body:           bodyBytes,
		BodyString:     string(bodyBytes),
		ResponseLength: len(bodyBytes),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(service, "status").Inc()
		return wRes, &StatusError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Title:      wRes.HTTPTitle,
			Body:       wRes.BodyString,
		}
	}

	metrics.UpstreamRequests.WithLabelValues(service, "ok").Inc()
	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(requestBody string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(requestBody))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}

// leveledLogger adapts logging.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	log logging.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.log.Errorf("%s %v", msg, kv) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.log.Debugf("%s %v", msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.log.Debugf("%s %v", msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.log.Warnf("%s %v", msg, kv) }
