package main

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/David-Botos/data-cleaner/pkg/converter"
	"github.com/David-Botos/data-cleaner/pkg/model"
	"github.com/David-Botos/data-cleaner/pkg/profiler"
)

func newProfileCmd(a *app) *cobra.Command {
	var (
		source     sourceFlags
		dateFormat string
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Propose a type for every column and summarize it without cleaning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := ""
			if dateFormat != "" {
				var err error
				if layout, err = converter.DateLayout(dateFormat); err != nil {
					return err
				}
			}
			table, err := a.loadTable(cmd.Context(), &source)
			if err != nil {
				return err
			}

			profiles := make([]model.ColumnProfile, 0, table.NumColumns())
			for _, col := range table.Columns() {
				profiles = append(profiles, profiler.Profile(col, layout))
			}
			return renderProfiles(cmd.OutOrStdout(), table.NumRows(), profiles)
		},
	}
	source.register(cmd)
	cmd.Flags().StringVar(&dateFormat, "date-format", "", "strftime format probed when proposing date columns")
	return cmd
}

func renderProfiles(w io.Writer, rows int, profiles []model.ColumnProfile) error {
	data := pterm.TableData{{"Column", "Type", "Missing", "Distinct", "Mean", "Std", "Min", "Max"}}
	for _, p := range profiles {
		mean, std, lo, hi := "", "", "", ""
		if n := p.Numeric; n != nil {
			mean = fmt.Sprintf("%.4g", n.Mean)
			std = fmt.Sprintf("%.4g", n.Std)
			lo = fmt.Sprintf("%.4g", n.Min)
			hi = fmt.Sprintf("%.4g", n.Max)
		}
		data = append(data, []string{
			p.Column,
			string(p.Proposed),
			fmt.Sprintf("%d (%.1f%%)", p.Missing, p.MissingRate()*100),
			fmt.Sprintf("%d", p.Distinct),
			mean, std, lo, hi,
		})
	}

	pterm.Fprintln(w, pterm.Sprintf("%d rows, %d columns", rows, len(profiles)))
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	pterm.Fprintln(w, out)
	return nil
}
