package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

var submitLogCmd = &cobra.Command{
	Use:   "submit-log <coordinator-id>",
	Short: "Record a coordinator's weekly effort",
	Long:  "Creates or replaces the coordinator's log for the week. --week defaults to the current week; any date is moved to its Monday.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		week, totals, breakdown, err := effortFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		saved, err := e.Service.SubmitCoordinatorWeeklyLog(ctx, args[0], week, totals, breakdown)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), saved)
	},
}

func registerSubmitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("week", "", "week start date YYYY-MM-DD (default current week)")
	f.Float64("meeting-hours", 0, "meeting and admin hours")
	f.Float64("screening-hours", 0, "screening hours")
	f.Int("screening-studies", 0, "number of studies screened for")
	f.Float64("query-hours", 0, "query resolution hours")
	f.Int("query-studies", 0, "number of studies with queries")
	f.String("notes", "", "free-text notes")
	f.String("breakdown-file", "", "JSON file with a per-study breakdown array")
}

// effortFromFlags reads a weekly submission from the flags.
func effortFromFlags(cmd *cobra.Command, now time.Time) (model.Week, model.EffortTotals, []model.StudyEffort, error) {
	f := cmd.Flags()

	week := model.WeekOf(now)
	if s, _ := f.GetString("week"); s != "" {
		w, err := model.ParseWeek(s)
		if err != nil {
			return model.Week{}, model.EffortTotals{}, nil, apperr.Invalid("submit-log", "weekStart", "must be YYYY-MM-DD")
		}
		week = w
	}

	var totals model.EffortTotals
	totals.MeetingHours, _ = f.GetFloat64("meeting-hours")
	totals.ScreeningHours, _ = f.GetFloat64("screening-hours")
	totals.ScreeningStudyCount, _ = f.GetInt("screening-studies")
	totals.QueryHours, _ = f.GetFloat64("query-hours")
	totals.QueryStudyCount, _ = f.GetInt("query-studies")
	totals.Notes, _ = f.GetString("notes")

	var breakdown []model.StudyEffort
	if path, _ := f.GetString("breakdown-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return week, totals, nil, eris.Wrapf(err, "read breakdown %s", path)
		}
		if err := json.Unmarshal(data, &breakdown); err != nil {
			return week, totals, nil, apperr.Invalid("submit-log", "breakdown", "must be a JSON array of study entries")
		}
	}
	return week, totals, breakdown, nil
}

var metricsJSON bool

var metricsCmd = &cobra.Command{
	Use:   "metrics <coordinator-id>",
	Short: "Show a coordinator's recent logs and study assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		m, err := e.Service.GetCoordinatorMetrics(ctx, args[0])
		if err != nil {
			return err
		}
		if metricsJSON {
			return printJSON(cmd.OutOrStdout(), m)
		}
		return writeMetrics(cmd.OutOrStdout(), m)
	},
}

func writeMetrics(w io.Writer, m model.CoordinatorMetrics) error {
	fmt.Fprintf(w, "Coordinator %s\n\n", m.CoordinatorID)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WEEK\tMEETING\tSCREENING\tSCREEN_STUDIES\tQUERY\tQUERY_STUDIES\tSTUDIES")
	for _, l := range m.Logs {
		studies := make([]string, len(l.Breakdown))
		for i, b := range l.Breakdown {
			studies[i] = b.StudyID
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d\t%.1f\t%d\t%s\n",
			l.WeekStart, l.MeetingHours, l.ScreeningHours, l.ScreeningStudyCount,
			l.QueryHours, l.QueryStudyCount, dash(strings.Join(studies, " ")))
	}
	if len(m.Logs) == 0 {
		fmt.Fprintln(tw, "(no logs)")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STUDY\tROLE\tJOINED")
	for _, a := range m.Assignments {
		joined := "-"
		if !a.JoinedAt.IsZero() {
			joined = a.JoinedAt.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.StudyID, dash(a.Role), joined)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	registerSubmitFlags(submitLogCmd)
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(submitLogCmd)
	rootCmd.AddCommand(metricsCmd)
}
