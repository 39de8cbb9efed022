package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the workload tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load studies, coordinators, assignments and visit schedule from a fixture file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fx, err := store.LoadFixtures(seedFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := st.Seed(ctx, *fx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d studies, %d coordinators, %d assignments, %d visits.\n",
			len(fx.Studies), len(fx.Coordinators), len(fx.Assignments), len(fx.VisitSchedule))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML fixture file")
	_ = seedCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
