package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/orchestrator"
	"github.com/courtrush/courtrush/pkg/schedule"
	"github.com/courtrush/courtrush/pkg/storage"
	"github.com/courtrush/courtrush/pkg/targets"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Server struct {
	DB          *storage.DB // optional; nil disables run history
	NewSession  facility.SessionFactory
	NewScanner  facility.ScannerFactory
	Credentials facility.Credentials
	Opening     schedule.Opening
	Gate        orchestrator.Gate // optional; nil = wall-clock waiter
	Concurrency int
	Defaults    targets.Defaults
	SiteURL     string
	// SearchPause separates page fetches of a search; see search.Options.
	SearchPause time.Duration

	// LockDir, when set, makes every race take the per-account run lock.
	LockDir string

	Username string
	Password string

	Log *logrus.Logger
	Now func() time.Time

	cron *cron.Cron
}

func New(newSession facility.SessionFactory, newScanner facility.ScannerFactory, creds facility.Credentials, log *logrus.Logger) *Server {
	return &Server{
		NewSession:  newSession,
		NewScanner:  newScanner,
		Credentials: creds,
		Concurrency: 10,
		Log:         log,
	}
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Handler builds the routed, logged and panic-safe API handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.NewRoute().Subrouter()
	api.Use(s.basicAuth)
	api.HandleFunc("/config", s.handleConfig).Methods("GET")
	api.HandleFunc("/next-opening", s.handleNextOpening).Methods("GET")
	api.HandleFunc("/check-login", s.handleCheckLogin).Methods("POST")
	api.HandleFunc("/check-slots", s.handleCheckSlots).Methods("POST")
	api.HandleFunc("/reserve", s.handleReserve).Methods("POST")
	api.HandleFunc("/reserve-single", s.handleReserveSingle).Methods("POST")
	api.HandleFunc("/search-weekend", s.handleSearchWeekend).Methods("POST")
	api.HandleFunc("/search-all", s.handleSearchAll).Methods("POST")
	api.HandleFunc("/runs", s.handleRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleRun).Methods("GET")

	var h http.Handler = r
	if s.Log != nil {
		h = handlers.LoggingHandler(s.Log.Writer(), h)
		h = handlers.RecoveryHandler(handlers.RecoveryLogger(s.Log))(h)
	} else {
		h = handlers.RecoveryHandler()(h)
	}
	return h
}

func (s *Server) Start(addr string) error {
	if s.cron != nil {
		s.cron.Start()
		defer s.cron.Stop()
	}
	if s.Log != nil {
		s.Log.Infof("Starting server on %s", addr)
	}
	return http.ListenAndServe(addr, s.Handler())
}

// ScheduleBatch runs req every time spec fires. The request always waits
// for the booking window; it is validated once up front.
func (s *Server) ScheduleBatch(spec string, req *targets.Request) (cron.EntryID, error) {
	req.WaitForOpen = true
	tg, err := req.Expand()
	if err != nil {
		return 0, err
	}
	creds := req.Credentials(s.Credentials)
	if creds.Empty() {
		return 0, errors.New("scheduled batch has no credentials")
	}
	if s.cron == nil {
		opts := []cron.Option{}
		if s.Log != nil {
			opts = append(opts, cron.WithLogger(cron.VerbosePrintfLogger(s.Log)))
		}
		s.cron = cron.New(opts...)
	}
	return s.cron.AddFunc(spec, func() {
		report, err := s.race(context.Background(), req, creds, tg)
		if s.Log == nil {
			return
		}
		if err != nil {
			s.Log.Errorf("Scheduled batch failed: %v", err)
			return
		}
		s.Log.Infof("Scheduled batch %s finished: %s", report.RunID, report.Summary())
	})
}

// StopSchedule stops the cron runner and returns a context that is done
// once running batches finish.
func (s *Server) StopSchedule() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

var errRaceInProgress = errors.New("race in progress")

// race runs one batch under the account lock and stores its report.
func (s *Server) race(ctx context.Context, req *targets.Request, creds facility.Credentials, tg []facility.Target) (*orchestrator.BatchReport, error) {
	if s.LockDir != "" {
		lock, err := utils.NewRunLock(s.LockDir, creds.ID)
		if err != nil {
			return nil, err
		}
		if err := lock.TryLock(); err != nil {
			if errors.Is(err, utils.ErrRunInProgress) {
				return nil, fmt.Errorf("%w: %v", errRaceInProgress, err)
			}
			return nil, err
		}
		defer lock.Unlock()
	}

	cfg := orchestrator.Config{
		NewSession:  s.NewSession,
		Credentials: creds,
		DryRun:      req.DryRun,
		WaitForOpen: req.WaitForOpen,
		Opening:     s.Opening,
		Gate:        s.Gate,
		Concurrency: s.Concurrency,
	}
	if s.Log != nil {
		cfg.Log = s.Log
	}
	report, runErr := orchestrator.Run(ctx, cfg, tg)
	if s.DB != nil {
		if err := s.DB.SaveReport(ctx, report); err != nil && s.Log != nil {
			s.Log.Warnf("Could not save run %s: %v", report.RunID, err)
		}
	}
	if runErr != nil && s.Log != nil {
		s.Log.Warnf("Run %s: %v", report.RunID, runErr)
	}
	return report, nil
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
