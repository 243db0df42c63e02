package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HatiCode/fdbwatch/pkg/archive"
	"github.com/HatiCode/fdbwatch/pkg/index"
)

func (a *app) forecastsCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "forecasts",
		Short: "List the forecast runs currently archived in FDB",
		Example: `  fdbwatch forecasts
  fdbwatch forecasts --filter model=icon-ch1-eps,levtype=sfc,step=0,number=1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := index.ParseFilter(filter)
			if err != nil {
				return err
			}
			idx, err := a.openIndex()
			if err != nil {
				return err
			}

			runs, err := index.ArchivedForecasts(cmd.Context(), idx, f)
			if err != nil {
				return err
			}
			return writeForecasts(cmd.OutOrStdout(), f, runs)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", `The metadata to filter by (default "levtype=sfc,number=1,step=0")`)
	return cmd
}

func writeForecasts(w io.Writer, f index.Filter, runs []time.Time) error {
	var b strings.Builder

	b.WriteString("Forecasts archived in FDB")
	if f.Len() > 0 {
		fmt.Fprintf(&b, " for %s", f)
	}
	b.WriteString(":\n")

	for _, run := range runs {
		fmt.Fprintf(&b, "  %s  %s\n", archive.RunLabel(run), run.Format("2006-01-02 15:04 MST"))
	}
	if len(runs) == 0 {
		b.WriteString("None\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
