package daehwa

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/courtrush/courtrush/pkg/whttp"
	"github.com/sirupsen/logrus"
)

const samplePage = `<html><body>
<form name="DocumentForm" method="post">
<input type="hidden" name="mode" value="apply">
<input type="hidden" name="nyear" value="2026">
<input type="hidden" name="nmonth" value="02">
<input type="hidden" name="nday" value="09">
<select name="place_opt"><option value="2">1번 코트</option><option value="7" selected>2번 코트</option></select>
<select name="part_opt"><option value="a">A</option><option value="b" selected>B</option></select>
<select name="unused"><option value="x">X</option></select>
<table>
<tr><th>선택</th><th>시간</th><th>상태</th></tr>
<tr><td><input type="checkbox" name="rent_chk[]" value="0600080011" disabled></td><td>06:00~08:00</td><td>예약가능</td></tr>
<tr><td><input type="checkbox" name="rent_chk[]" value="0800100012"></td><td>08:00~10:00</td><td>일정있음</td></tr>
<tr><td><input type="checkbox" name="rent_chk[]" value="1000120066"></td><td>10:00~12:00</td><td>예약가능</td></tr>
<tr><td><input type="checkbox" name="rent_chk[]" value="12001400"></td><td>12:00~14:00</td><td>예약가능</td></tr>
<tr><td><input type="checkbox" name="rent_chk[]" value="1400"></td><td>14:00~16:00</td><td>예약가능</td></tr>
</table>
</form>
</body></html>`

const emptyPage = `<html><body><form name="DocumentForm"><table>
<tr><td><input type="checkbox" name="rent_chk[]" value="0600080011" disabled></td><td>일정있음</td></tr>
</table></form></body></html>`

const sampleApplyPage = `<html><body>
<form name="useForm" method="post" action="rent_period_proc.php">
<input type="hidden" name="rent_chk[]" value="10001200">
<input type="hidden" name="user_id" value="tester">
<input type="text" name="user_nm" value="홍길동">
<input type="text" name="com_nm" value="">
<input type="hidden" name="nyear" value="">
<textarea name="use_purpose">동호회 연습</textarea>
</form>
</body></html>`

// fakeSite imitates the facility's endpoints.
type fakeSite struct {
	mu sync.Mutex

	user, pass string
	page       string
	applyPage  string
	submitBody string
	applyCode  int

	// rootFailures and pageFailures answer that many requests with an error
	// before behaving normally.
	rootFailures int
	pageFailures int

	loginPosts  int
	rootErrors  int
	pageErrors  int
	pageQueries []url.Values
	applyPosts  int
	applied     url.Values
	submitPosts int
	submitted   url.Values

	srv *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{
		user:       "tester",
		pass:       "secret",
		page:       samplePage,
		applyPage:  sampleApplyPage,
		submitBody: `<script>alert("대관신청이 정상적으로 완료되었습니다.");</script>`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		if site.rootFailures > 0 {
			site.rootFailures--
			site.rootErrors++
			site.mu.Unlock()
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		site.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if site.member(r) {
			fmt.Fprint(w, `<html><body><a href="/member/logout.php">로그아웃</a></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/member/login.php">로그인</a></body></html>`)
	})
	mux.HandleFunc(LoginPath, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		site.mu.Lock()
		site.loginPosts++
		site.mu.Unlock()
		if r.PostForm.Get("id") == site.user && r.PostForm.Get("pw") == site.pass {
			http.SetCookie(w, &http.Cookie{Name: "sess", Value: "member", Path: "/"})
		}
		fmt.Fprint(w, `<script>location.href="/";</script>`)
	})
	mux.HandleFunc(PagePath, func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		if site.pageFailures > 0 {
			site.pageFailures--
			site.pageErrors++
			site.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		site.pageQueries = append(site.pageQueries, r.URL.Query())
		page := site.page
		site.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	})
	mux.HandleFunc(ApplyPath, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		site.mu.Lock()
		defer site.mu.Unlock()
		site.applyPosts++
		site.applied = r.PostForm
		if site.applyCode != 0 {
			w.WriteHeader(site.applyCode)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, site.applyPage)
	})
	mux.HandleFunc(SubmitPath, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		site.mu.Lock()
		defer site.mu.Unlock()
		site.submitPosts++
		site.submitted = r.PostForm
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, site.submitBody)
	})

	site.srv = httptest.NewTLSServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func (f *fakeSite) member(r *http.Request) bool {
	c, err := r.Cookie("sess")
	return err == nil && c.Value == "member"
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = 3
	cfg.StepRetries = 2
	cfg.LoginAttempts = 3
	cfg.LoginDelayMin, cfg.LoginDelayMax = 0, 0
	cfg.SubmitDelayMin, cfg.SubmitDelayMax = 0, 0
	cfg.PageDelayMin, cfg.PageDelayMax = 0, 0
	cfg.Transport = whttp.Options{
		ConnectTimeout: time.Second,
		ReadTimeout:    2 * time.Second,
		PoolBackoff:    time.Millisecond,
	}
	return cfg
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestSession(t *testing.T, site *fakeSite) *Session {
	t.Helper()
	s, err := New(testConfig(site.srv.URL), quietLog())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}
