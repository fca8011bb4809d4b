// Package whttp is the transport layer shared by every facility actor: a
// cookie-keeping, retrying HTTP client that looks like a desktop browser.
package whttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const (
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	AcceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptLanguage = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Params  url.Values
	Body    string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	HTTPTitle      string
	BodyString     string
}

// Encoder is anything that renders itself as an urlencoded form body.
// url.Values and facility.Form both qualify.
type Encoder interface {
	Encode() string
}

// Options configures a Client. Zero values fall back to DefaultOptions.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// PoolRetries and PoolBackoff drive the inner retry layer, which only
	// reacts to 5xx answers and refused/reset connections.
	PoolRetries int
	PoolBackoff time.Duration

	// DelayMin and DelayMax bound the jittered pause of the outer loop in Do.
	DelayMin time.Duration
	DelayMax time.Duration

	// ResetAfter is the zero-based attempt index after which a connection
	// failure rebuilds the client from scratch. Failures at or below it keep
	// the current jar and pool.
	ResetAfter int

	Proxy string
	Log   *logrus.Entry
}

func DefaultOptions() Options {
	return Options{
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    30 * time.Second,
		PoolRetries:    3,
		PoolBackoff:    500 * time.Millisecond,
		DelayMin:       100 * time.Millisecond,
		DelayMax:       time.Second,
		ResetAfter:     2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.PoolRetries < 0 {
		o.PoolRetries = 0
	}
	if o.PoolBackoff <= 0 {
		o.PoolBackoff = d.PoolBackoff
	}
	if o.DelayMax < o.DelayMin {
		o.DelayMax = o.DelayMin
	}
	if o.ResetAfter <= 0 {
		o.ResetAfter = d.ResetAfter
	}
	return o
}

// Client owns one cookie jar and one connection pool. It is meant to be
// owned by a single actor and is not safe for concurrent use.
type Client struct {
	opts   Options
	log    *logrus.Entry
	retry  *retryablehttp.Client
	resets int

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) (*Client, error) {
	c := &Client{
		opts:  opts.withDefaults(),
		log:   opts.Log,
		sleep: Sleep,
	}
	if c.log == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		c.log = logrus.NewEntry(silent)
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) build() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   c.opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// The facility serves a legacy certificate chain.
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   c.opts.ConnectTimeout,
		ResponseHeaderTimeout: c.opts.ReadTimeout,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	if c.opts.Proxy != "" {
		proxyURL, err := url.Parse(c.opts.Proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %v", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = c.opts.PoolRetries
	retryClient.RetryWaitMin = c.opts.PoolBackoff
	retryClient.RetryWaitMax = c.opts.PoolBackoff * 8
	retryClient.Backoff = retryablehttp.DefaultBackoff
	retryClient.CheckRetry = poolRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.HTTPClient = &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   c.opts.ConnectTimeout + c.opts.ReadTimeout,
	}

	c.retry = retryClient
	return nil
}

// poolRetryPolicy retries 5xx answers and broken connections. Timeouts are
// left to the outer loop in Do so that its attempt bound stays exact.
func poolRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		if kindOf(err) == KindTimeout {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Reset discards the cookie jar and the connection pool and starts over.
func (c *Client) Reset() error {
	c.log.Warn("rebuilding session")
	old := c.retry
	if err := c.build(); err != nil {
		return err
	}
	old.HTTPClient.CloseIdleConnections()
	c.resets++
	return nil
}

// Resets reports how many times the client has been rebuilt.
func (c *Client) Resets() int {
	return c.resets
}

func (c *Client) Close() {
	if c.retry != nil {
		c.retry.HTTPClient.CloseIdleConnections()
	}
}

// Cookies returns the cookies the jar would send to rawURL.
func (c *Client) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return c.retry.HTTPClient.Jar.Cookies(u)
}

func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, attempts int) (*WHTTPRes, error) {
	return c.Do(ctx, &WHTTPReq{Method: http.MethodGet, URL: rawURL, Params: params}, attempts)
}

func (c *Client) Post(ctx context.Context, rawURL string, form Encoder, attempts int) (*WHTTPRes, error) {
	req := &WHTTPReq{
		Method: http.MethodPost,
		URL:    rawURL,
		Body:   form.Encode(),
		Headers: []WHTTPHeader{
			{Name: "Content-Type", Value: "application/x-www-form-urlencoded"},
		},
	}
	if u, err := url.Parse(rawURL); err == nil {
		origin := u.Scheme + "://" + u.Host
		req.Headers = append(req.Headers, WHTTPHeader{Name: "Origin", Value: origin}, WHTTPHeader{Name: "Referer", Value: origin + "/"})
	}
	return c.Do(ctx, req, attempts)
}

// Do sends wReq up to attempts times. Timeouts, broken connections and 5xx
// answers are retried after a jittered pause; a 4xx answer is returned at once.
// A connection failure late in the sequence rebuilds the client before the
// next attempt.
func (c *Client) Do(ctx context.Context, wReq *WHTTPReq, attempts int) (*WHTTPRes, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		res, err := c.SendHTTPRequest(ctx, wReq)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var werr *Error
		if errors.As(err, &werr) {
			if werr.Kind == KindClient {
				return res, err
			}
			c.log.Warnf("[RETRY %d/%d] %s: %s", attempt+1, attempts, werr.Kind, wReq.URL)
			if werr.Kind == KindConnection && attempt > c.opts.ResetAfter {
				if rerr := c.Reset(); rerr != nil {
					c.log.Errorf("could not rebuild session: %v", rerr)
				}
			}
		}

		if attempt < attempts-1 {
			if err := c.sleep(ctx, c.jitter()); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (c *Client) jitter() time.Duration {
	span := c.opts.DelayMax - c.opts.DelayMin
	if span <= 0 {
		return c.opts.DelayMin
	}
	return c.opts.DelayMin + rand.N(span)
}

// SendHTTPRequest performs one logical request (the inner pool retries
// included) and decodes the body to UTF-8.
func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	target := wReq.URL
	if len(wReq.Params) > 0 {
		u, err := url.Parse(wReq.URL)
		if err != nil {
			return nil, &Error{Kind: KindOther, Method: wReq.Method, URL: wReq.URL, Err: err}
		}
		u.RawQuery = wReq.Params.Encode()
		target = u.String()
	}

	var body interface{}
	if wReq.Body != "" {
		body = strings.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindOther, Method: wReq.Method, URL: target, Err: err}
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", AcceptHTML)
	req.Header.Set("Accept-Language", AcceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &Error{Kind: kindOf(err), Method: wReq.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, &Error{Kind: kindOf(err), Method: wReq.Method, URL: target, Err: err}
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
	}
	wRes.ResponseLength = utf8.RuneCountInString(wRes.BodyString)
	if title, ok := getHTMLTitle(wRes.BodyString); ok {
		wRes.HTTPTitle = strings.TrimSpace(strings.NewReplacer("\n", "", "\r", "").Replace(title))
	}
	c.log.Debugf("%s %s -> %d (%d chars) %q", wReq.Method, target, wRes.StatusCode, wRes.ResponseLength, wRes.HTTPTitle)

	switch {
	case resp.StatusCode >= 500:
		return wRes, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Method: wReq.Method, URL: target}
	case resp.StatusCode >= 400:
		return wRes, &Error{Kind: KindClient, StatusCode: resp.StatusCode, Method: wReq.Method, URL: target}
	}
	return wRes, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return findTitle(doc)
}

func findTitle(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title, ok := findTitle(c); ok {
			return title, true
		}
	}
	return "", false
}
