package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the most recent fetches from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstNonEmpty(dbPath, c.cfg.DBPath)
			if path == "" {
				return errors.New("history needs a journal: pass --db or set TRADEDASH_DB")
			}
			journal, err := openJournal(path)
			if err != nil {
				return err
			}
			defer journal.Close()

			events, err := journal.ListFetches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), events)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FETCHED\tREPORTER\tPARTNER\tYEAR\tCLASS\tSTATUS\tROWS\tELAPSED\tERROR")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					e.FetchedAt.Local().Format(time.DateTime),
					e.Reporter, e.Partner, e.Year, e.Classification,
					e.Status, e.Rows, e.Elapsed.Round(time.Millisecond), e.Error,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite fetch journal path (default $TRADEDASH_DB)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of fetches to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
