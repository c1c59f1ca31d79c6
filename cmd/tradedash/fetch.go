package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradedash/internal/chart"
	"tradedash/internal/dashboard"
)

type fetchOutput struct {
	dashboard.Figures
	Plotly *chart.PlotlyFigures `json:"plotly,omitempty"`
}

func (c *cli) newFetchCmd() *cobra.Command {
	var (
		in          inputFlags
		out         string
		dbPath      string
		optionsPath string
		plotly      bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one query and write its chart specs as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, journal, err := c.buildApp(dbPath, optionsPath)
			if err != nil {
				return err
			}
			defer journal.Close()

			figs := app.Refresh(cmd.Context(), in.inputs(cmd, app))
			if figs.Rows == 0 {
				c.log.Warn("no trade records for query",
					zap.String("reporter", figs.Inputs.Reporter),
					zap.String("partner", figs.Inputs.Partner),
					zap.String("year", figs.Inputs.Year),
				)
			}

			result := fetchOutput{Figures: figs}
			if plotly {
				pf := figs.Charts.Plotly()
				result.Plotly = &pf
			}

			w, closeFn, err := createOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := writeJSON(w, result); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite fetch journal path")
	cmd.Flags().StringVar(&optionsPath, "options", "", "YAML file with the dropdown options")
	cmd.Flags().BoolVar(&plotly, "plotly", false, "include the Plotly figure JSON")
	return cmd
}
