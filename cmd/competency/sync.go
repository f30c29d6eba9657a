package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-competency/internal/app"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency/hierarchy"
)

func syncCmd() *cobra.Command {
	var (
		courseID string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push an analyzed course to Moodle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), app.Options{}, func(a *app.App) error {
				res, err := a.Usecases().SyncCourse(cmd.Context(), courseID)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				printSyncResult(res)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&courseID, "course", "c", "", "course id")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func stateCmd() *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show a course's sync state as derived from Moodle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), app.Options{SkipMigrate: true}, func(a *app.App) error {
				state, err := a.Usecases().SyncState(cmd.Context(), courseID)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", courseID, state)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&courseID, "course", "c", "", "course id")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func printSyncResult(res *hierarchy.Result) {
	fmt.Printf("course %s: %s\n", res.CourseID, res.State)
	fmt.Printf("  created=%d updated=%d removed=%d unchanged=%d skipped=%d failed=%d\n",
		res.Count(hierarchy.OutcomeCreated),
		res.Count(hierarchy.OutcomeUpdated),
		res.Count(hierarchy.OutcomeRemoved),
		res.Count(hierarchy.OutcomeUnchanged),
		res.Count(hierarchy.OutcomeSkipped),
		res.Count(hierarchy.OutcomeFailed),
	)
	for _, e := range res.Errors(competency.MaxReportedFailures) {
		fmt.Printf("  ! %s\n", e)
	}
}
