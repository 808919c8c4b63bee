package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/matcher"
	"github.com/rshade/lcamatch/internal/service"
)

func newCandidatesCmd(a *app) *cobra.Command {
	var opts matcher.Options

	cmd := &cobra.Command{
		Use:   "candidates <project-id> <material>",
		Short: "Rank match candidates for a project material",
		Example: `  # Candidates from the project's preferred source
  lcamatch candidates 01J9Z3 "Beton C30/37"

  # Only strong candidates from Ökobaudat
  lcamatch candidates 01J9Z3 "Beton C30/37" --source oekobaudat --threshold 0.6`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Threshold < 0 || opts.Threshold > 1 {
				return fmt.Errorf("threshold must be between 0 and 1, got %g", opts.Threshold)
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.FindCandidates(ctx, args[0], args[1], opts)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) { renderCandidates(w, res) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "source id or \"all\" (default: the project's source)")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0, "minimum score (0 = configured threshold)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of candidates (0 = configured limit)")
	return cmd
}

func renderCandidates(w io.Writer, res *matcher.Candidates) {
	fmt.Fprintf(w, "Query\t%s\n", res.Query)
	if res.Cleaned != res.Query {
		fmt.Fprintf(w, "Cleaned\t%s\n", res.Cleaned)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Score\tID\tName\tCategory")
	fmt.Fprintln(w, "-----\t--\t----\t--------")
	for i := range res.Candidates {
		c := &res.Candidates[i]
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n", c.Score, c.Material.ID, c.Material.Name, c.Material.Category)
	}
	if res.Fallback {
		fmt.Fprintln(w, "\nsource unavailable, showing sample data that cannot be matched")
	}
}

func newMatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "match <project-id> <material> <material-id>",
		Short:   "Match a project material to a normalized material",
		Example: `  lcamatch match 01J9Z3 "Beton C30/37" KBOB_01.002`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.ApplyManualMatch(ctx, args[0], service.ManualMatchRequest{
					MaterialName: args[1],
					MaterialID:   args[2],
				})
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Matched\t%s -> %s (%.2f)\n", args[1], res.Match.MaterialID, res.Match.Score)
					renderCalculation(w, res)
				})
			})
		},
	}
}

var errNameOrAll = errors.New("name a material or pass --all")

func newUnmatchCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "unmatch <project-id> [material]",
		Short: "Clear the match of one material, or of every material with --all",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 2) {
				return errNameOrAll
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if all {
					res, err := svc.ClearAllMatches(ctx, args[0])
					if err != nil {
						return err
					}
					return a.render(cmd, res, func(w io.Writer) {
						fmt.Fprintf(w, "Cleared\t%d\n", res.Cleared)
						if res.Calculation != nil {
							fmt.Fprintf(w, "Totals\t%s\n", formatValues(res.Calculation.Totals))
						}
					})
				}
				res, err := svc.ClearMatch(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Cleared\t%s\n", args[1])
					renderCalculation(w, res)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear every match of the project")
	return cmd
}

func renderCalculation(w io.Writer, res *matcher.MatchOutcome) {
	if res.Calculation != nil {
		fmt.Fprintf(w, "Totals\t%s\n", formatValues(res.Calculation.Totals))
	}
}

func newAutoMatchCmd(a *app) *cobra.Command {
	var src string

	cmd := &cobra.Command{
		Use:   "automatch <project-id>",
		Short: "Match every unmatched material with a confident candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.AutoMatch(ctx, args[0], src)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintln(w, "Material\tMatch\tScore\tMethod")
					fmt.Fprintln(w, "--------\t-----\t-----\t------")
					for _, m := range res.Matched {
						fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", m.Name, m.MaterialID, m.Score, m.Method)
					}
					for _, name := range res.Unmatched {
						fmt.Fprintf(w, "%s\t-\t-\t-\n", name)
					}
					if res.Calculation != nil {
						fmt.Fprintf(w, "\nTotals\t%s\n", formatValues(res.Calculation.Totals))
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&src, "source", "", "source id or \"all\" (default: the project's source)")
	return cmd
}
