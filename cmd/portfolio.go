package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/trial-workload/internal/report"
)

var (
	portfolioFormat    string
	portfolioBreakdown bool
	portfolioOut       string
	trendFormat        string
	trendOut           string
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Compute study workload and coordinator allocation for the current week",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := reportFormat(portfolioFormat, portfolioOut)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		p, err := e.Service.GetPortfolioWorkload(ctx, portfolioBreakdown)
		if err != nil {
			return err
		}
		return withOutput(cmd, portfolioOut, func(w io.Writer) error {
			return report.WritePortfolio(w, p, format)
		})
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show weekly actual against forecast points for the portfolio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := reportFormat(trendFormat, trendOut)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.Service.GetWorkloadTrend(ctx)
		if err != nil {
			return err
		}
		return withOutput(cmd, trendOut, func(w io.Writer) error {
			return report.WriteTrend(w, t, format)
		})
	},
}

// reportFormat parses --format. XLSX is binary and needs --out.
func reportFormat(name, out string) (report.Format, error) {
	f, err := report.ParseFormat(name)
	if err != nil {
		return "", err
	}
	if f == report.FormatXLSX && out == "" {
		return "", eris.New("xlsx output requires --out")
	}
	return f, nil
}

func init() {
	portfolioCmd.Flags().StringVar(&portfolioFormat, "format", "table", "output format: table, csv, xlsx or json")
	portfolioCmd.Flags().BoolVar(&portfolioBreakdown, "include-breakdown", false, "include weekly actuals per study")
	portfolioCmd.Flags().StringVar(&portfolioOut, "out", "", "write to a file instead of stdout")

	trendCmd.Flags().StringVar(&trendFormat, "format", "table", "output format: table, csv, xlsx or json")
	trendCmd.Flags().StringVar(&trendOut, "out", "", "write to a file instead of stdout")

	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(trendCmd)
}
