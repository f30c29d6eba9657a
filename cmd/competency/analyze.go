package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-competency/internal/app"
	"github.com/yungbote/neurobridge-competency/internal/manifest"
	"github.com/yungbote/neurobridge-competency/internal/modules/competency"
)

func analyzeCmd() *cobra.Command {
	var (
		manifestPath    string
		sync            bool
		force           bool
		pullAssignments bool
		asJSON          bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract competencies and infer the course graph from a manifest",
		Long: `Analyze a course described by a YAML manifest.

Documents are read relative to the manifest. Unchanged documents are skipped
unless --force is given. With --sync the course is pushed to Moodle afterwards.

Examples:
  competency analyze --manifest courses/gdp/course.yaml
  competency analyze --manifest course.yaml --sync --pull-assignments`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), app.Options{ContentRoot: m.Dir}, func(a *app.App) error {
				out, err := a.Usecases().AnalyzeCourse(cmd.Context(), competency.AnalyzeInput{
					Course:          m.CourseInput(),
					Force:           force,
					Sync:            sync,
					PullAssignments: pullAssignments,
				})
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}
				fmt.Print(out.Report.String())
				if out.State != nil {
					fmt.Printf("sync state: %s\n", out.State)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "course manifest (YAML)")
	cmd.Flags().BoolVar(&sync, "sync", false, "sync to Moodle after analysis")
	cmd.Flags().BoolVar(&force, "force", false, "re-extract unchanged documents")
	cmd.Flags().BoolVar(&pullAssignments, "pull-assignments", false, "add the course's Moodle assignments")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
