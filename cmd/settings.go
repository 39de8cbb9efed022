package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or update a study's workload settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <study-id>",
	Short: "Show a study's workload settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.Service.GetStudyWorkloadSettings(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <study-id>",
	Short: "Update a study's workload settings",
	Long:  "Only the flags given are changed. Rubric flags are scored and reported; --apply-rubric also writes the recommended score as the protocol score.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		update, err := partialFromFlags(cmd)
		if err != nil {
			return err
		}
		apply, _ := cmd.Flags().GetBool("apply-rubric")

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.Service.SetStudyWorkloadSettings(ctx, args[0], update, apply)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var profileFloatFlags = []string{"protocol-score", "screening-multiplier", "query-multiplier", "meeting-admin-points"}

func registerSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("protocol-score", 0, "protocol complexity score")
	f.Float64("screening-multiplier", 0, "screening effort multiplier")
	f.Float64("query-multiplier", 0, "query effort multiplier")
	f.Float64("meeting-admin-points", 0, "fixed weekly meeting and admin points")
	f.String("lifecycle", "", "start_up, active, follow_up or close_out")
	f.String("recruitment", "", "enrolling, paused, closed_to_accrual or on_hold")
	f.StringToString("visit-weight", nil, "visit type weights, e.g. Screening=2,Baseline=1.5")
	f.Bool("apply-rubric", false, "use the rubric's recommended score as the protocol score")
	registerRubricFlags(cmd)
}

// partialFromFlags builds an update from the flags that were set.
func partialFromFlags(cmd *cobra.Command) (model.PartialProfile, error) {
	f := cmd.Flags()
	var u model.PartialProfile

	targets := map[string]**float64{
		"protocol-score":       &u.ProtocolScore,
		"screening-multiplier": &u.ScreeningMultiplier,
		"query-multiplier":     &u.QueryMultiplier,
		"meeting-admin-points": &u.MeetingAdminPoints,
	}
	for _, name := range profileFloatFlags {
		if !f.Changed(name) {
			continue
		}
		v, err := f.GetFloat64(name)
		if err != nil {
			return u, err
		}
		*targets[name] = &v
	}

	if f.Changed("lifecycle") {
		v, _ := f.GetString("lifecycle")
		lc := model.Lifecycle(v)
		u.Lifecycle = &lc
	}
	if f.Changed("recruitment") {
		v, _ := f.GetString("recruitment")
		rs := model.Recruitment(v)
		u.Recruitment = &rs
	}
	if f.Changed("visit-weight") {
		raw, _ := f.GetStringToString("visit-weight")
		u.VisitWeights = make(map[string]float64, len(raw))
		for visit, s := range raw {
			w, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return u, apperr.Invalid("settings", "visitWeights["+visit+"]", "must be a number")
			}
			u.VisitWeights[visit] = w
		}
	}
	if sel, ok := rubricSelection(cmd); ok {
		u.Rubric = &sel
	}
	return u, nil
}

func init() {
	registerSettingsFlags(settingsSetCmd)

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
