package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/trial-workload/internal/model"
	"github.com/sells-group/trial-workload/internal/rubric"
)

var rubricOptions bool

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Score a protocol-complexity rubric selection",
	Long:  "Prints the recommended protocol score for the given selections, or the option tables with --options. Unset axes score their default option.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scorer, err := initScorer()
		if err != nil {
			return err
		}
		if rubricOptions {
			return writeRubricOptions(cmd.OutOrStdout(), scorer.Tables())
		}
		sel, _ := rubricSelection(cmd)
		res, err := scorer.Score(sel)
		if err != nil {
			return err
		}
		return writeRubricResult(cmd.OutOrStdout(), res)
	},
}

var rubricFlagNames = map[string]string{
	rubric.AxisTrialType:           "trial-type",
	rubric.AxisPhase:               "phase",
	rubric.AxisSponsorType:         "sponsor-type",
	rubric.AxisVisitVolume:         "visit-volume",
	rubric.AxisProceduralIntensity: "procedural-intensity",
}

func registerRubricFlags(cmd *cobra.Command) {
	for _, axis := range rubric.Axes {
		cmd.Flags().String(rubricFlagNames[axis], "", fmt.Sprintf("rubric %s option key", axis))
	}
}

// rubricSelection reads the rubric flags. The bool reports whether any of
// them was set.
func rubricSelection(cmd *cobra.Command) (model.RubricSelection, bool) {
	get := func(axis string) string {
		v, _ := cmd.Flags().GetString(rubricFlagNames[axis])
		return v
	}
	changed := false
	for _, name := range rubricFlagNames {
		if cmd.Flags().Changed(name) {
			changed = true
		}
	}
	return model.RubricSelection{
		TrialType:           get(rubric.AxisTrialType),
		Phase:               get(rubric.AxisPhase),
		SponsorType:         get(rubric.AxisSponsorType),
		VisitVolume:         get(rubric.AxisVisitVolume),
		ProceduralIntensity: get(rubric.AxisProceduralIntensity),
	}, changed
}

func writeRubricResult(w io.Writer, res rubric.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AXIS\tOPTION\tPOINTS")
	for _, a := range res.Axes {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", a.Axis, a.Option, a.Points)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nRecommended protocol score: %g / %d\n", res.RecommendedScore, res.MaxScore)
	return err
}

func writeRubricOptions(w io.Writer, tables rubric.Tables) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AXIS\tKEY\tLABEL\tPOINTS")
	for _, axis := range rubric.Axes {
		for _, o := range tables[axis] {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", axis, o.Key, o.Label, o.Points)
		}
	}
	return tw.Flush()
}

func init() {
	rubricCmd.Flags().BoolVar(&rubricOptions, "options", false, "list the rubric option tables")
	registerRubricFlags(rubricCmd)
	rootCmd.AddCommand(rubricCmd)
}
