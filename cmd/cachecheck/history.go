package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachecheck/record"
	"github.com/sarchlab/cachecheck/suite"
)

func newHistoryCmd() *cobra.Command {
	var (
		db      string
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the runs recorded in the history database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("db") {
				config := suite.DefaultConfig()
				if err := config.ApplyEnv(envFile); err != nil {
					return err
				}
				db = config.DB
			}
			if db == "" {
				return errors.New("no history database: pass --db or set " + suite.EnvDB)
			}

			runs, err := record.ListRuns(db)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tCANDIDATE\tCASES\tPASS\tFAIL\tSKIP\tERROR\tRESULT")
			for _, r := range runs {
				result := "FAIL"
				if r.OK() {
					result = "OK"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					r.ID, r.Started.Local().Format(time.DateTime), r.Candidate,
					r.Cases, r.Passed, r.Failed, r.Skipped, r.Errored, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "SQLite database that keeps the run history")
	cmd.Flags().StringVar(&envFile, "env", ".env", "Environment file with CACHECHECK_* overrides")

	return cmd
}
