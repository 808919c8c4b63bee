package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/registry"
	"github.com/rshade/lcamatch/internal/service"
	"github.com/rshade/lcamatch/internal/source"
)

func newSourcesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List and sync LCA data sources",
	}
	cmd.AddCommand(newSourcesListCmd(a), newSourcesSyncCmd(a))
	return cmd
}

func newSourcesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(_ context.Context, svc *service.Service) error {
				infos := svc.GetSourceList()
				return a.render(cmd, infos, func(w io.Writer) {
					renderSources(w, infos)
				})
			})
		},
	}
}

func renderSources(w io.Writer, infos []source.Info) {
	fmt.Fprintln(w, "ID\tName\tRegion\tPriority\tConfigured\tIndicators")
	fmt.Fprintln(w, "--\t----\t------\t--------\t----------\t----------")
	for _, info := range infos {
		keys := make([]string, 0, len(info.Indicators))
		for _, k := range info.Indicators {
			keys = append(keys, string(k))
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%d\t%t\t%s\n",
			info.ID, info.CountryFlag, info.Name, info.Region, info.Priority, info.IsConfigured,
			strings.Join(keys, ","))
	}
}

func newSourcesSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [source]",
		Short: "Pull source datasets into the local store",
		Long:  "Pull one source, or every enabled source when none is named",
		Example: `  # Sync every enabled source
  lcamatch sources sync

  # Sync only Ökobaudat
  lcamatch sources sync oekobaudat`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				var reports []service.SyncReport
				if len(args) == 1 {
					rep, err := svc.TriggerSync(ctx, args[0])
					if err != nil {
						return err
					}
					reports = []service.SyncReport{rep}
				} else {
					var err error
					if reports, err = svc.SyncAll(ctx); err != nil {
						return err
					}
				}
				if err := a.render(cmd, reports, func(w io.Writer) { renderSyncReports(w, reports) }); err != nil {
					return err
				}
				return failedSyncs(reports)
			})
		},
	}
}

func renderSyncReports(w io.Writer, reports []service.SyncReport) {
	fmt.Fprintln(w, "Source\tAdded\tUpdated\tUnchanged\tSkipped\tRemoved\tErrors\tStatus")
	fmt.Fprintln(w, "------\t-----\t-------\t---------\t-------\t-------\t------\t------")
	for _, r := range reports {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Source, r.Added, r.Updated, r.Unchanged, r.Skipped, r.Removed, r.Errors, status)
	}
}

// failedSyncs turns sync reports carrying an error into a command error so
// the exit status reflects the failure.
func failedSyncs(reports []service.SyncReport) error {
	var failed []string
	for _, r := range reports {
		if r.Error != "" {
			failed = append(failed, string(r.Source))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("sync failed for %s", strings.Join(failed, ", "))
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		src   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search normalized materials",
		Example: `  # Search every configured source
  lcamatch search "Brettschichtholz"

  # Search one source with a limit
  lcamatch search Beton --source kbob --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.SearchMaterials(ctx, query, src, limit)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) { renderSearch(w, res) })
			})
		},
	}

	cmd.Flags().StringVar(&src, "source", registry.AllSources, "source id, or \"all\"")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (0 = default)")
	return cmd
}

func renderSearch(w io.Writer, res registry.SearchResult) {
	fmt.Fprintln(w, "ID\tName\tCategory\tDensity\tIndicators")
	fmt.Fprintln(w, "--\t----\t--------\t-------\t----------")
	for i := range res.Materials {
		m := &res.Materials[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.Category, formatOptional(m.Density), formatValues(m.Indicators))
	}
	fmt.Fprintf(w, "\n%d result(s)", res.Count)
	if res.Fallback {
		fmt.Fprint(w, " (sample data, source unavailable)")
	}
	if res.Syncing {
		fmt.Fprint(w, " (sync still running)")
	}
	fmt.Fprintln(w)
}

func newMaterialCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "material <id>",
		Short:   "Show one normalized material",
		Example: `  lcamatch material KBOB_01.002`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				m, err := svc.GetMaterial(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, m, func(w io.Writer) {
					fmt.Fprintf(w, "ID\t%s\n", m.ID)
					fmt.Fprintf(w, "Name\t%s\n", m.Name)
					fmt.Fprintf(w, "Source\t%s (%s)\n", m.Source, m.SourceID)
					fmt.Fprintf(w, "Category\t%s\n", m.Category)
					fmt.Fprintf(w, "Density\t%s\n", formatOptional(m.Density))
					if m.DeclaredUnit != "" {
						fmt.Fprintf(w, "Declared unit\t%s\n", m.DeclaredUnit)
					}
					for _, k := range m.Indicators.Keys() {
						fmt.Fprintf(w, "%s\t%s\n", k, formatNumber(m.Indicators[k]))
					}
				})
			})
		},
	}
}
