package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradedash/internal/chart"
	"tradedash/internal/chart/render"
)

func (c *cli) newRenderCmd() *cobra.Command {
	var (
		in          inputFlags
		kind        string
		out         string
		width       int
		height      int
		dbPath      string
		optionsPath string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Fetch one query and draw the trend or hierarchy chart to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, ok := chart.ParseKind(kind)
			if !ok {
				return fmt.Errorf("unknown chart kind %q", kind)
			}
			if k == chart.KindFlow {
				return render.ErrUnsupported
			}

			app, journal, err := c.buildApp(dbPath, optionsPath)
			if err != nil {
				return err
			}
			defer journal.Close()

			figs := app.Refresh(cmd.Context(), in.inputs(cmd, app))

			w, closeFn, err := createOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := render.Figures(w, figs.Charts, k, render.Options{Width: width, Height: height}); err != nil {
				_ = closeFn()
				return err
			}
			c.log.Debug("rendered chart", zap.String("kind", string(k)), zap.String("id", figs.ID), zap.Int("rows", figs.Rows))
			return closeFn()
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", string(chart.KindTrend), "chart to draw: trend or hierarchy")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG file (required)")
	cmd.Flags().IntVar(&width, "width", 0, "image width in pixels (default 960)")
	cmd.Flags().IntVar(&height, "height", 0, "image height in pixels (default 480)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite fetch journal path")
	cmd.Flags().StringVar(&optionsPath, "options", "", "YAML file with the dropdown options")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
