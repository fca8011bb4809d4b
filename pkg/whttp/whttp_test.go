package whttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"
)

func fastOptions() Options {
	return Options{
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
		PoolRetries:    0,
		PoolBackoff:    time.Millisecond,
	}
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestDoTimeoutIsAttemptedExactlyMaxTimes(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.ReadTimeout = 50 * time.Millisecond
	opts.PoolRetries = 3
	c := newTestClient(t, opts)

	_, err := c.Get(context.Background(), srv.URL, nil, 4)
	if err == nil {
		t.Fatal("expected an error from a server that never answers")
	}
	if got := atomic.LoadInt32(&hits); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
	var werr *Error
	if !asError(err, &werr) || werr.Kind != KindTimeout {
		t.Fatalf("expected a timeout error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatalf("expected timeout to be retryable")
	}
}

func TestDoServerErrorUsesBothRetryLayers(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.PoolRetries = 2
	c := newTestClient(t, opts)

	res, err := c.Get(context.Background(), srv.URL, nil, 3)
	if err == nil {
		t.Fatal("expected an error")
	}
	if res != nil {
		t.Fatalf("expected no response after exhausting retries, got %+v", res)
	}
	// 3 outer attempts, each made of 1 try plus 2 pool retries.
	if got := atomic.LoadInt32(&hits); got != 9 {
		t.Fatalf("expected 9 requests, got %d", got)
	}
	var werr *Error
	if !asError(err, &werr) || werr.Kind != KindServer || werr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected a 503 server error, got %v", err)
	}
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.PoolRetries = 3
	c := newTestClient(t, opts)

	res, err := c.Get(context.Background(), srv.URL, nil, 10)
	if !IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("client errors must not be retryable")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected the 403 response to be returned, got %+v", res)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestDoJitterBetweenAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := fastOptions()
	opts.DelayMin = 100 * time.Millisecond
	opts.DelayMax = time.Second
	c := newTestClient(t, opts)

	var pauses []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	if _, err := c.Get(context.Background(), srv.URL, nil, 5); err == nil {
		t.Fatal("expected an error")
	}
	if len(pauses) != 4 {
		t.Fatalf("expected 4 pauses between 5 attempts, got %d", len(pauses))
	}
	for _, p := range pauses {
		if p < opts.DelayMin || p >= opts.DelayMax {
			t.Fatalf("pause %v outside [%v, %v)", p, opts.DelayMin, opts.DelayMax)
		}
	}
}

func TestClientKeepsCookiesAndBrowserHeaders(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
		case "/echo":
			cookie, _ := r.Cookie("PHPSESSID")
			val := ""
			if cookie != nil {
				val = cookie.Value
			}
			fmt.Fprintf(w, "%s|%s|%s", r.Header.Get("User-Agent"), r.Header.Get("Accept-Language"), val)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, fastOptions())
	ctx := context.Background()

	if _, err := c.Get(ctx, srv.URL+"/set", nil, 1); err != nil {
		t.Fatalf("GET /set over self-signed TLS: %v", err)
	}
	res, err := c.Get(ctx, srv.URL+"/echo", nil, 1)
	if err != nil {
		t.Fatalf("GET /echo: %v", err)
	}
	expect := UserAgent + "|" + AcceptLanguage + "|abc"
	if res.BodyString != expect {
		t.Fatalf("expected %q, got %q", expect, res.BodyString)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n := len(c.Cookies(srv.URL)); n != 0 {
		t.Fatalf("expected no cookies after reset, got %d", n)
	}
	if c.Resets() != 1 {
		t.Fatalf("expected 1 reset, got %d", c.Resets())
	}
}

func TestDoRebuildsClientAfterRepeatedConnectionFailures(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		wantResets int
		keepCookie bool
	}{
		{"early failures keep the session", 3, 0, true},
		{"late failure rebuilds the session", 4, 1, false},
		{"every late failure rebuilds", 5, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&hits, 1)
				if n > 1 && n <= 1+tt.failures {
					conn, _, err := w.(http.Hijacker).Hijack()
					if err == nil {
						conn.Close()
					}
					return
				}
				w.Header().Set("Connection", "close")
				if r.URL.Path == "/set" {
					http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", Path: "/"})
				}
				fmt.Fprint(w, "ok")
			}))
			defer srv.Close()

			c := newTestClient(t, fastOptions())
			c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
			ctx := context.Background()

			if _, err := c.Get(ctx, srv.URL+"/set", nil, 1); err != nil {
				t.Fatalf("GET /set: %v", err)
			}
			res, err := c.Get(ctx, srv.URL+"/page", nil, int(tt.failures)+1)
			if err != nil {
				t.Fatalf("expected the last attempt to succeed, got %v", err)
			}
			if res.BodyString != "ok" {
				t.Fatalf("expected \"ok\", got %q", res.BodyString)
			}
			if got := atomic.LoadInt32(&hits); got != tt.failures+2 {
				t.Fatalf("expected %d requests, got %d", tt.failures+2, got)
			}
			if c.Resets() != tt.wantResets {
				t.Fatalf("expected %d resets, got %d", tt.wantResets, c.Resets())
			}
			if got := len(c.Cookies(srv.URL)) == 1; got != tt.keepCookie {
				t.Fatalf("expected cookie kept=%v, got %v", tt.keepCookie, got)
			}
		})
	}
}

func TestPostSendsFormAndQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, "%s %s %s", r.Method, r.Header.Get("Content-Type"), r.Form.Get("com_nm"))
	}))
	defer srv.Close()

	c := newTestClient(t, fastOptions())
	res, err := c.Post(context.Background(), srv.URL, url.Values{"com_nm": {"개인"}}, 1)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if res.BodyString != "POST application/x-www-form-urlencoded 개인" {
		t.Fatalf("unexpected echo: %q", res.BodyString)
	}

	res, err = c.Get(context.Background(), srv.URL, url.Values{"com_nm": {"단체"}}, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.BodyString != "GET  단체" {
		t.Fatalf("unexpected echo: %q", res.BodyString)
	}
}

func TestBodyIsDecodedFromDeclaredCharset(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("<html><head><title>대화레포츠</title></head><body>로그아웃</body></html>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.Write([]byte(encoded))
	}))
	defer srv.Close()

	c := newTestClient(t, fastOptions())
	res, err := c.Get(context.Background(), srv.URL, nil, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if res.HTTPTitle != "대화레포츠" {
		t.Fatalf("expected decoded title, got %q", res.HTTPTitle)
	}
	if !containsString(res.BodyString, "로그아웃") {
		t.Fatalf("expected decoded body, got %q", res.BodyString)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Get(ctx, srv.URL, nil, 5); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
