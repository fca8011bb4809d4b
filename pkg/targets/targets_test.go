package targets

import (
	"errors"
	"reflect"
	"testing"

	"github.com/courtrush/courtrush/pkg/facility"
)

func TestExpandCartesian(t *testing.T) {
	req := mustParse(t, `{"dates":["2026-02-02","2026-02-03"],"hours":[6,8],"courts":[1,2]}`)
	got, err := req.Expand()
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 targets, got %d", len(got))
	}

	seen := make(map[string]bool)
	for _, tg := range got {
		seen[tg.String()] = true
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct targets, got %d", len(seen))
	}
	if keys(got)[0] != "2026-02-02/6/1" || keys(got)[7] != "2026-02-03/8/2" {
		t.Fatalf("unexpected order %v", keys(got))
	}
}

func TestExpandShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "single court",
			body: `{"dates":["2026-02-09"],"hours":[10],"court":3}`,
			want: []string{"2026-02-09/10/3"},
		},
		{
			name: "court as list",
			body: `{"dates":["2026-02-09"],"hours":[10],"court":[3,4]}`,
			want: []string{"2026-02-09/10/3", "2026-02-09/10/4"},
		},
		{
			name: "courts wins over court",
			body: `{"dates":["2026-02-09"],"hours":[10],"court":1,"courts":[2]}`,
			want: []string{"2026-02-09/10/2"},
		},
		{
			name: "explicit reservations",
			body: `{"reservations":[{"date":"2026-02-09","hour":8,"court":1},{"date":"2026-02-09","hour":6,"court":2}],"dates":["2026-03-01"],"hours":[20],"courts":[4]}`,
			want: []string{"2026-02-09/8/1", "2026-02-09/6/2"},
		},
		{
			name: "court schedules",
			body: `{"dates":["2026-02-09","2026-02-10"],"court_schedules":[{"court":1,"hours":[8,10]},{"court":2,"hours":[6]}]}`,
			want: []string{
				"2026-02-09/8/1", "2026-02-09/10/1", "2026-02-10/8/1", "2026-02-10/10/1",
				"2026-02-09/6/2", "2026-02-10/6/2",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustParse(t, tt.body).Expand()
			if err != nil {
				t.Fatalf("Expand: %v", err)
			}
			if !reflect.DeepEqual(keys(got), tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, keys(got))
			}
		})
	}
}

func TestExpandValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no dates", `{"hours":[6],"courts":[1]}`, "dates"},
		{"no hours", `{"dates":["2026-02-09"],"courts":[1]}`, "hours"},
		{"no courts", `{"dates":["2026-02-09"],"hours":[6]}`, "courts"},
		{"bad date", `{"dates":["2026/02/09"],"hours":[6],"courts":[1]}`, "dates"},
		{"odd hour", `{"dates":["2026-02-09"],"hours":[7],"courts":[1]}`, "hours"},
		{"court 0", `{"dates":["2026-02-09"],"hours":[6],"courts":[0]}`, "courts"},
		{"court 5", `{"reservations":[{"date":"2026-02-09","hour":6,"court":5}]}`, "reservations[0]"},
		{"schedule without dates", `{"court_schedules":[{"court":1,"hours":[6]}]}`, "dates"},
		{"schedule bad hour", `{"dates":["2026-02-09"],"court_schedules":[{"court":1,"hours":[22]}]}`, "court_schedules[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustParse(t, tt.body).Expand()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %q, got %q (%s)", tt.field, verr.Field, verr.Msg)
			}
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"dates":`},
		{"not object", `[1,2]`},
		{"reservations not array", `{"reservations":{"date":"2026-02-09"}}`},
		{"reservation missing hour", `{"reservations":[{"date":"2026-02-09","court":1}]}`},
		{"courts not array", `{"courts":2}`},
		{"hour not number", `{"hours":["6"]}`},
		{"fractional hour", `{"hours":[6.5]}`},
		{"schedule missing hours", `{"court_schedules":[{"court":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestParseRequestFlags(t *testing.T) {
	req := mustParse(t, `{"test_mode":true,"user_id":"kim","user_pw":"pw"}`)
	if !req.DryRun || !req.WaitForOpen {
		t.Fatalf("expected dry run and default wait, got %+v", req)
	}
	creds := req.Credentials(facility.Credentials{ID: "env", Password: "envpw"})
	if creds.ID != "kim" || creds.Password != "pw" {
		t.Fatalf("expected override credentials, got %+v", creds)
	}

	req = mustParse(t, `{"wait_for_open":false}`)
	if req.WaitForOpen {
		t.Fatal("expected wait_for_open=false to be honoured")
	}
	creds = req.Credentials(facility.Credentials{ID: "env", Password: "envpw"})
	if creds.ID != "env" {
		t.Fatalf("expected fallback credentials, got %+v", creds)
	}

	req = mustParse(t, "")
	if !req.WaitForOpen || req.DryRun {
		t.Fatalf("unexpected empty request %+v", req)
	}
}

func TestApplyDefaults(t *testing.T) {
	req := mustParse(t, `{"hours":[20]}`)
	req.ApplyDefaults(Defaults{Dates: []string{"2026-02-09"}, Hours: []int{6}, Courts: []int{2}})
	got, err := req.Expand()
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !reflect.DeepEqual(keys(got), []string{"2026-02-09/20/2"}) {
		t.Fatalf("unexpected targets %v", keys(got))
	}
}

func TestParseCLIForms(t *testing.T) {
	res, err := ParseReservation("2026-02-09:10:2")
	if err != nil || res != (Reservation{Date: "2026-02-09", Hour: 10, Court: 2}) {
		t.Fatalf("unexpected reservation %+v (%v)", res, err)
	}
	if _, err := ParseReservation("2026-02-09:10"); err == nil {
		t.Fatal("expected error for missing court")
	}

	sched, err := ParseCourtSchedule("3:8, 10")
	if err != nil || sched.Court != 3 || !reflect.DeepEqual(sched.Hours, []int{8, 10}) {
		t.Fatalf("unexpected schedule %+v (%v)", sched, err)
	}
	if _, err := ParseCourtSchedule("3"); err == nil {
		t.Fatal("expected error for missing hours")
	}
}
