package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/courtrush/courtrush/pkg/orchestrator"
	"github.com/sirupsen/logrus"
)

func main() {
	// Usage: go run *.go -user "your_id" -password "your_pw" -date 2026-02-09 -hour 6 -court 2

	userFlag := flag.String("user", "", "Member ID")
	passwordFlag := flag.String("password", "", "Member password")
	dateFlag := flag.String("date", "", "Date (YYYY-MM-DD)")
	hourFlag := flag.Int("hour", 6, "Start hour")
	courtFlag := flag.Int("court", 1, "Court number (1-4)")

	// Parse the command-line flags
	flag.Parse()

	if *userFlag == "" || *passwordFlag == "" {
		fmt.Println("Credentials are required. Please provide them using the -user and -password flags.")
		return
	}

	target, err := facility.NewTarget(*dateFlag, *hourFlag, *courtFlag)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Dry run: everything except the final submission, without waiting for the window
	report, err := orchestrator.Run(context.Background(), orchestrator.Config{
		NewSession:  daehwa.NewSessionFactory(daehwa.DefaultConfig(), logrus.StandardLogger()),
		Credentials: facility.Credentials{ID: *userFlag, Password: *passwordFlag},
		DryRun:      true,
		Log:         logrus.StandardLogger(),
	}, []facility.Target{target})
	if err != nil {
		fmt.Println(err)
	}

	for _, r := range report.Results {
		fmt.Println(r.Target, r.Success, r.Message)
	}
}
