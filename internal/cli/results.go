package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/calc"
	"github.com/rshade/lcamatch/internal/service"
)

func newRecalcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc <project-id>",
		Short: "Recalculate the emissions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Recalculate(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Elements\t%d\n", res.ElementCount)
					fmt.Fprintf(w, "Layers\t%d\n", res.LayerCount)
					fmt.Fprintf(w, "Totals\t%s\n", formatValues(res.Totals))
					for _, name := range res.ClearedMatches {
						fmt.Fprintf(w, "Cleared stale match\t%s\n", name)
					}
				})
			})
		},
	}
}

func newEmissionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "emissions <project-id>",
		Short: "Show project emissions by element type, material and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				em, err := svc.GetEmissions(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, em, func(w io.Writer) { renderEmissions(w, em) })
			})
		},
	}
}

func renderEmissions(w io.Writer, em *calc.Emissions) {
	fmt.Fprintf(w, "Totals\t%s\n", formatValues(em.Totals))
	if em.Relative != nil {
		fmt.Fprintf(w, "Per %s %s/year\t%s\n",
			em.Relative.AreaUnit, em.Relative.AreaType, formatValues(em.Relative.Indicators))
	}

	fmt.Fprintln(w, "\nElement type\tCount\tVolume\tIndicators")
	for _, t := range em.ByElementType {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Type, t.Count, formatNumber(t.Volume), formatValues(t.Indicators))
	}

	fmt.Fprintln(w, "\nMaterial\tMatch\tVolume\tIndicators")
	for _, m := range em.ByMaterial {
		match := "-"
		if m.MatchedTo != nil {
			match = m.MatchedTo.MaterialID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, match, formatNumber(m.Volume), formatValues(m.Indicators))
	}

	fmt.Fprintln(w, "\nCategory\tVolume\tIndicators")
	for _, c := range em.ByCategory {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Category, formatNumber(c.Volume), formatValues(c.Indicators))
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Export per-element indicators for write-back to IFC",
		Long: `Export the GWP, PENRE and UBP values of every element, keyed by GUID,
as the CPset_LCA property set. The export is always JSON.`,
		Example: `  lcamatch export 01J9Z3 --out lca.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				exp, err := svc.ExportIndicators(ctx, args[0])
				if err != nil {
					return err
				}
				if out == "" {
					if a.output == outputTable {
						return a.render(cmd, exp, func(w io.Writer) { renderExport(w, exp) })
					}
					return writeExport(cmd.OutOrStdout(), exp)
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				if err := writeExport(f, exp); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the export to a file")
	return cmd
}

func writeExport(w io.Writer, exp *calc.Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exp)
}

func renderExport(w io.Writer, exp *calc.Export) {
	guids := make([]string, 0, len(exp.Elements))
	for g := range exp.Elements {
		guids = append(guids, g)
	}
	sort.Strings(guids)

	fmt.Fprintf(w, "Property set\t%s\n\n", exp.PropertySet)
	fmt.Fprintln(w, "GUID\tVolume\tGWP\tPENRE\tUBP")
	for _, g := range guids {
		e := exp.Elements[g]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			g, formatNumber(e.Volume), formatOptional(e.GWP), formatOptional(e.PENRE), formatOptional(e.UBP))
	}
}
