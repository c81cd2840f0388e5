package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/rentals/internal/migration"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/store"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		UpCmd(),
		DownCmd(),
		StatusCmd(),
		HistoryCmd(),
		ValidateCmd(),
	)
	return cmd
}

func UpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			out := cmd.OutOrStdout()

			db, err := getDB()
			if err != nil {
				return err
			}
			defer store.Close(db)

			m := store.NewMigrator(db)
			if dryRun {
				pending, err := m.Pending(cmd.Context())
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(out, "No pending migrations.")
					return nil
				}
				fmt.Fprintln(out, "Pending migrations:")
				for _, mg := range pending {
					fmt.Fprintf(out, "- %s (%s)\n", mg.Name, mg.Version)
				}
				return nil
			}

			applied, err := m.Up(cmd.Context())
			for _, mg := range applied {
				fmt.Fprintf(out, "Successfully applied migration: %s (%s)\n", mg.Name, mg.Version)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "No pending migrations.")
			}
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Show pending migrations without executing them")

	return cmd
}

func DownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDB()
			if err != nil {
				return err
			}
			defer store.Close(db)

			mg, err := store.NewMigrator(db).Down(cmd.Context())
			if errors.Is(err, migration.ErrNothingToRevert) {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations to revert.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully reverted migration: %s\n", mg.Name)
			return nil
		},
	}
}

func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDB()
			if err != nil {
				return err
			}
			defer store.Close(db)

			statuses, err := store.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s  %-30s  %-8s  %-24s\n", "Version", "Name", "Applied", "Applied At")
			for _, st := range statuses {
				appliedAt := "-"
				if st.AppliedAt != nil {
					appliedAt = st.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%-16s  %-30s  %-8t  %-24s\n", st.Version, st.Name, st.Applied, appliedAt)
			}
			return nil
		},
	}
}

func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show migration history",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDB()
			if err != nil {
				return err
			}
			defer store.Close(db)

			records, err := store.NewMigrator(db).History(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No migrations have been applied yet.")
				return nil
			}

			fmt.Fprintf(out, "%-16s  %-30s  %-24s\n", "Version", "Name", "Applied At")
			for _, record := range records {
				fmt.Fprintf(out, "%-16s  %-30s  %-24s\n", record.Version, record.Name, record.AppliedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the database schema against the models",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := getDB()
			if err != nil {
				return err
			}
			defer store.Close(db)

			drift, err := migration.Drift(cmd.Context(), db, models.All()...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(drift) == 0 {
				fmt.Fprintln(out, "Schema matches models.")
				return nil
			}
			for _, d := range drift {
				if d.MissingTable {
					fmt.Fprintf(out, "- %s: table missing\n", d.Table)
					continue
				}
				for _, c := range d.MissingColumns {
					fmt.Fprintf(out, "- %s: column %s missing\n", d.Table, c)
				}
				for _, i := range d.MissingIndexes {
					fmt.Fprintf(out, "- %s: index %s missing\n", d.Table, i)
				}
			}
			return fmt.Errorf("schema drift detected in %d tables", len(drift))
		},
	}
}
