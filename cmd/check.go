package cmd

import (
	"context"
	"fmt"

	"github.com/courtrush/courtrush/internal/utils"
	"github.com/courtrush/courtrush/pkg/facility"
	"github.com/courtrush/courtrush/pkg/facility/daehwa"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the account or the free slots of a court page",
}

var checkLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in once and report the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := credentials(cmd)
		if err := requireCredentials(creds); err != nil {
			return err
		}
		s, err := daehwa.New(siteConfig(cmd), utils.Log.WithField("worker", 0))
		if err != nil {
			return err
		}
		defer s.Close()

		if !s.Login(context.Background(), creds) {
			fmt.Println(failureStyle.Render("로그인 실패"))
			return fmt.Errorf("login failed for %s", creds.ID)
		}
		fmt.Println(successStyle.Render("로그인 성공"))
		return nil
	},
}

var checkSlotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List the free slots of one court on one date",
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")
		court, _ := cmd.Flags().GetInt("court")
		date, err := facility.ParseDate(dateStr)
		if err != nil {
			return err
		}
		if !facility.ValidCourt(court) {
			return fmt.Errorf("%w: %d", facility.ErrInvalidCourt, court)
		}
		creds := credentials(cmd)
		if err := requireCredentials(creds); err != nil {
			return err
		}

		s, err := daehwa.New(siteConfig(cmd), utils.Log.WithField("worker", 0))
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		if !s.Login(ctx, creds) {
			return fmt.Errorf("login failed for %s", creds.ID)
		}
		slots, err := s.Slots(ctx, court, date)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%s court %d: %d free slot(s)", dateStr, court, len(slots))))
		for _, sl := range slots {
			fmt.Printf("%s~%s  %s\n", sl.Start, sl.End, mutedStyle.Render(sl.Token))
		}
		if facility.IsLikelyClosure(slots) {
			fmt.Println(mutedStyle.Render("every slot is free: the courts are probably closed that day"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.AddCommand(checkLoginCmd)
	checkCmd.AddCommand(checkSlotsCmd)

	checkSlotsCmd.Flags().StringP("date", "d", "", "Date (YYYY-MM-DD)")
	checkSlotsCmd.Flags().IntP("court", "c", 1, "Court number (1-4)")
	checkSlotsCmd.MarkFlagRequired("date")
}
