package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/ods"
	"github.com/pbaille/codebook/internal/report"
)

func (a *app) statsCmd() *cobra.Command {
	var odsPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Category statistics over all interviews",
	}
	cmd.PersistentFlags().StringVar(&odsPath, "ods", "", "also write the table to an OpenDocument spreadsheet")

	build := func(name, short string, table func(p *domain.Project) (ods.Table, error)) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				ws, closeAll, err := a.openWorkspace()
				if err != nil {
					return err
				}
				defer closeAll()

				var t ods.Table
				ws.View(func(p *domain.Project) { t, err = table(p) })
				if err != nil {
					return err
				}

				if err := report.WriteText(cmd.OutOrStdout(), t); err != nil {
					return err
				}
				if odsPath != "" {
					if err := ods.WriteFile(odsPath, t); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", odsPath)
				}
				return nil
			},
		}
	}

	cmd.AddCommand(build("occurrences", "Runs per category and interview, rolled up to ancestors",
		func(p *domain.Project) (ods.Table, error) {
			return report.Occurrences(p.Categories, p.SortedInterviews()), nil
		}))
	cmd.AddCommand(build("coverage", "Share of tagged tokens per interview",
		func(p *domain.Project) (ods.Table, error) {
			return report.Coverage(p.SortedInterviews()), nil
		}))

	var minLen, maxLen int
	patterns := build("patterns", "Frequent category sequences per interview",
		func(p *domain.Project) (ods.Table, error) {
			return report.Patterns(p.Categories, p.SortedInterviews(), minLen, maxLen)
		})
	patterns.Flags().IntVar(&minLen, "min", 2, "shortest pattern length")
	patterns.Flags().IntVar(&maxLen, "max", 3, "longest pattern length")
	cmd.AddCommand(patterns)

	return cmd
}
