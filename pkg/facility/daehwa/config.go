// Package daehwa drives the tennis-court reservation site of the Goyang
// Daehwa sports complex: login, slot scanning and the two-step
// application protocol.
package daehwa

import (
	"strings"
	"time"

	"github.com/courtrush/courtrush/pkg/whttp"
)

const (
	DefaultBaseURL = "https://daehwa.gys.or.kr:451"

	LoginPath  = "/member/login_process.php"
	PagePath   = "/rent/tennis_rent.php"
	ApplyPath  = "/rent/rent_period_apply.php"
	SubmitPath = "/rent/rent_period_proc.php"

	// LogoutMarker only shows up for an authenticated member.
	LogoutMarker = "로그아웃"
	// ScheduledMarker flags a row that is already booked.
	ScheduledMarker = "일정있음"

	DocumentFormName = "DocumentForm"
	UseFormName      = "useForm"
	SlotFieldName    = "rent_chk[]"

	// DurationUnit is the fixed value of the use_time field.
	DurationUnit = "2"
	// PlaceholderRegNo stands in for the business registration number.
	PlaceholderRegNo = "0000000000000"
	// DefaultOrganization is the organization name of a private member.
	DefaultOrganization = "개인"
)

// courtCodes maps court numbers to the site's place_opt values.
var courtCodes = map[int]string{
	1: "2",
	2: "7",
	3: "8",
	4: "9",
}

// CourtCode returns the place_opt value for court.
func CourtCode(court int) (string, bool) {
	code, ok := courtCodes[court]
	return code, ok
}

// Config is built once at startup and shared read-only by every Session.
type Config struct {
	BaseURL string

	// MaxRetries bounds the requests of a page fetch and the page fetches of
	// a reservation. It also bounds whole submission attempts.
	MaxRetries int
	// StepRetries bounds each request of the login handshake and each form POST.
	StepRetries int
	// LoginAttempts bounds full login handshakes.
	LoginAttempts int
	// WarmupRetries bounds the keep-alive request.
	WarmupRetries int

	LoginDelayMin  time.Duration
	LoginDelayMax  time.Duration
	PageDelayMin   time.Duration
	PageDelayMax   time.Duration
	SubmitDelayMin time.Duration
	SubmitDelayMax time.Duration

	Transport whttp.Options
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		MaxRetries:     10,
		StepRetries:    3,
		LoginAttempts:  10,
		WarmupRetries:  2,
		LoginDelayMin:  500 * time.Millisecond,
		LoginDelayMax:  1500 * time.Millisecond,
		PageDelayMin:   200 * time.Millisecond,
		PageDelayMax:   800 * time.Millisecond,
		SubmitDelayMin: 100 * time.Millisecond,
		SubmitDelayMax: 500 * time.Millisecond,
		Transport:      whttp.DefaultOptions(),
	}
}

func (c Config) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}
