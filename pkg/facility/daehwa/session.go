package daehwa

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/whttp"
	"github.com/sirupsen/logrus"
)

var ErrNotLoggedIn = errors.New("session is not logged in")

// Session is one member actor on the site. It implements facility.Session
// and facility.Scanner.
type Session struct {
	cfg      Config
	client   *whttp.Client
	log      *logrus.Entry
	loggedIn bool

	sleep func(ctx context.Context, d time.Duration) error
}

var (
	_ facility.Session = (*Session)(nil)
	_ facility.Scanner = (*Session)(nil)
)

func New(cfg Config, log *logrus.Entry) (*Session, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	opts := cfg.Transport
	opts.Log = log
	client, err := whttp.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, client: client, log: log, sleep: whttp.Sleep}, nil
}

// NewSessionFactory returns a factory that tags each Session's log lines
// with its worker number.
func NewSessionFactory(cfg Config, logger *logrus.Logger) facility.SessionFactory {
	return func(workerID int) (facility.Session, error) {
		return New(cfg, logger.WithField("worker", workerID))
	}
}

func NewScannerFactory(cfg Config, logger *logrus.Logger) facility.ScannerFactory {
	return func() (facility.Scanner, error) {
		return New(cfg, logger.WithField("worker", "search"))
	}
}

func (s *Session) LoggedIn() bool {
	return s.loggedIn
}

// Login runs the root/login/root handshake until the logout marker shows
// up or the attempts are used up. A failed handshake rebuilds the
// connection before the next try.
func (s *Session) Login(ctx context.Context, creds facility.Credentials) bool {
	attempts := max(s.cfg.LoginAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		s.log.Info("logging in")
		ok, err := s.loginOnce(ctx, creds)
		if ok {
			s.loggedIn = true
			s.log.Info("login succeeded")
			return true
		}
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			s.log.Warnf("login not confirmed, retry %d/%d", attempt+1, attempts)
			continue
		}

		s.log.Errorf("login error: %v", err)
		if attempt < attempts-1 {
			if rerr := s.client.Reset(); rerr != nil {
				s.log.Errorf("could not rebuild session: %v", rerr)
			}
			s.loggedIn = false
			if s.pause(ctx, s.cfg.LoginDelayMin, s.cfg.LoginDelayMax) != nil {
				break
			}
		}
	}
	s.log.Error("login failed")
	return false
}

func (s *Session) loginOnce(ctx context.Context, creds facility.Credentials) (bool, error) {
	if _, err := s.client.Get(ctx, s.cfg.BaseURL, nil, s.cfg.StepRetries); err != nil {
		return false, err
	}

	form := facility.NewForm()
	form.Set("id", creds.ID)
	form.Set("pw", creds.Password)
	if _, err := s.client.Post(ctx, s.cfg.url(LoginPath), form, s.cfg.StepRetries); err != nil {
		return false, err
	}

	res, err := s.client.Get(ctx, s.cfg.BaseURL, nil, s.cfg.StepRetries)
	if err != nil {
		return false, err
	}
	return strings.Contains(res.BodyString, LogoutMarker), nil
}

func (s *Session) Warmup(ctx context.Context) error {
	s.log.Debug("warming up connection")
	if _, err := s.client.Get(ctx, s.cfg.BaseURL, nil, s.cfg.WarmupRetries); err != nil {
		s.log.Warnf("warmup failed: %v", err)
		return err
	}
	return nil
}

// FetchPage returns the reservation page of court on date.
func (s *Session) FetchPage(ctx context.Context, court int, date time.Time) (string, error) {
	if !s.loggedIn {
		return "", ErrNotLoggedIn
	}
	code, ok := CourtCode(court)
	if !ok {
		return "", fmt.Errorf("%w: %d", facility.ErrInvalidCourt, court)
	}
	params := url.Values{}
	params.Set("place_opt", code)
	params.Set("nyear", fmt.Sprintf("%d", date.Year()))
	params.Set("nmonth", fmt.Sprintf("%02d", int(date.Month())))
	params.Set("nday", fmt.Sprintf("%02d", date.Day()))

	res, err := s.client.Get(ctx, s.cfg.url(PagePath), params, s.cfg.MaxRetries)
	if err != nil {
		return "", err
	}
	return res.BodyString, nil
}

func (s *Session) Slots(ctx context.Context, court int, date time.Time) ([]facility.Slot, error) {
	page, err := s.FetchPage(ctx, court, date)
	if err != nil {
		return nil, err
	}
	return ParseSlots(page)
}

// Reserve looks up the target's slot and submits it.
func (s *Session) Reserve(ctx context.Context, t facility.Target, dryRun bool) facility.Result {
	log := s.log.WithFields(logrus.Fields{"date": t.DateString(), "hour": t.Hour, "court": t.Court})
	log.Info("reservation started")
	result := facility.Result{Target: t}

	slots, err := s.slotsWithRetry(ctx, t)
	if err != nil {
		log.Errorf("could not load reservation page: %v", err)
		result.Message = MsgPageFailed
		return result
	}
	if len(slots) == 0 {
		log.Warn("no free slots")
		result.Message = MsgNoSlots
		return result
	}

	slot, ok := facility.FindHour(slots, t.Hour)
	if !ok {
		log.Warnf("%02d:00 is not free", t.Hour)
		result.Message = fmt.Sprintf("%02d:00 예약 불가", t.Hour)
		return result
	}

	outcome := s.Submit(ctx, t, slot, dryRun)
	result.Success = outcome.Success
	result.Message = outcome.Message
	if outcome.Success {
		log.Infof("reservation done: %s", outcome.Message)
	} else {
		log.Warnf("reservation rejected: %s", outcome.Message)
	}
	return result
}

// slotsWithRetry loads the target's page up to MaxRetries times. Missing
// login and unknown courts fail at once.
func (s *Session) slotsWithRetry(ctx context.Context, t facility.Target) ([]facility.Slot, error) {
	attempts := max(s.cfg.MaxRetries, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var slots []facility.Slot
		slots, err = s.Slots(ctx, t.Court, t.Date)
		if err == nil {
			return slots, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrNotLoggedIn) || errors.Is(err, facility.ErrInvalidCourt) {
			return nil, err
		}
		s.log.Warnf("[RETRY %d/%d] reservation page: %v", attempt+1, attempts, err)
		if attempt < attempts-1 {
			if perr := s.pause(ctx, s.cfg.PageDelayMin, s.cfg.PageDelayMax); perr != nil {
				return nil, perr
			}
		}
	}
	return nil, err
}

// Submit runs the application protocol for slot. Transport failures and
// missing forms restart the whole sequence; a 4xx answer or a classified
// answer ends it.
func (s *Session) Submit(ctx context.Context, t facility.Target, slot facility.Slot, dryRun bool) Outcome {
	attempts := max(s.cfg.MaxRetries, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		outcome, err := s.submitOnce(ctx, t, slot, dryRun)
		if err == nil {
			return outcome
		}
		if ctx.Err() != nil {
			break
		}
		if whttp.IsClientError(err) {
			s.log.Errorf("submission refused: %v", err)
			return Outcome{Kind: OutcomeUnclassified, Message: fmt.Sprintf("예약 신청 실패 (%v)", err)}
		}
		s.log.Warnf("[RETRY %d/%d] submission error: %v", attempt+1, attempts, err)
		if attempt < attempts-1 {
			if s.pause(ctx, s.cfg.SubmitDelayMin, s.cfg.SubmitDelayMax) != nil {
				break
			}
		}
	}
	return Outcome{Kind: OutcomeUnclassified, Message: MsgRetriesExhausted}
}

func (s *Session) submitOnce(ctx context.Context, t facility.Target, slot facility.Slot, dryRun bool) (Outcome, error) {
	code, ok := CourtCode(t.Court)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %d", facility.ErrInvalidCourt, t.Court)
	}

	page, err := s.FetchPage(ctx, t.Court, t.Date)
	if err != nil {
		return Outcome{}, err
	}
	form, err := BuildApplyForm(page, code, slot.Token)
	if err != nil {
		return Outcome{}, err
	}

	applyRes, err := s.client.Post(ctx, s.cfg.url(ApplyPath), form, s.cfg.StepRetries)
	if err != nil {
		return Outcome{}, err
	}
	form, err = BuildFinalForm(form, applyRes.BodyString, slot.Token)
	if err != nil {
		return Outcome{}, err
	}
	s.log.Debugf("final form: %s=%s stime=%s etime=%s", SlotFieldName, form.Value(SlotFieldName), form.Value("stime"), form.Value("etime"))

	if dryRun {
		s.log.Info("dry run, final submission skipped")
		return Outcome{Kind: OutcomeDryRun, Success: true, Message: MsgDryRun}, nil
	}

	s.log.Info("submitting application")
	res, err := s.client.Post(ctx, s.cfg.url(SubmitPath), form, s.cfg.StepRetries)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Classify(res.BodyString)
	if outcome.Heuristic() {
		s.log.Warnf("answer not recognised, assuming success (%s)", res.HTTPTitle)
	}
	return outcome, nil
}

func (s *Session) pause(ctx context.Context, lo, hi time.Duration) error {
	d := lo
	if hi > lo {
		d += rand.N(hi - lo)
	}
	return s.sleep(ctx, d)
}

func (s *Session) Close() {
	s.client.Close()
}
