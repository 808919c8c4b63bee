package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/service"
	"github.com/rshade/lcamatch/internal/store"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect projects",
	}
	cmd.AddCommand(
		newProjectCreateCmd(a),
		newProjectListCmd(a),
		newProjectShowCmd(a),
		newProjectSourceCmd(a),
		newProjectMaterialsCmd(a),
	)
	return cmd
}

func newProjectCreateCmd(a *app) *cobra.Command {
	var (
		req   service.CreateProjectRequest
		area  service.Area
		years int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Example: `  # Project with an energy reference area of 1200 m²
  lcamatch project create --name "Schulhaus" --source kbob --area 1200 --area-type EBF

  # Override the amortization period of every element
  lcamatch project create --name "Pavillon" --area 300 --amortization 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("area") {
				req.Area = &area
			}
			if cmd.Flags().Changed("amortization") {
				req.AmortizationOverride = &years
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.CreateProject(ctx, req)
				if err != nil {
					return err
				}
				return a.render(cmd, p, func(w io.Writer) { renderProject(w, p) })
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&req.PreferredSource, "source", "", "preferred data source")
	cmd.Flags().StringVar(&req.ClassificationSystem, "classification", "", "classification system of element codes, e.g. eBKP-H")
	cmd.Flags().Float64Var(&area.Value, "area", 0, "reference area for relative emissions")
	cmd.Flags().StringVar(&area.Type, "area-type", "EBF", "reference area type")
	cmd.Flags().StringVar(&area.Unit, "area-unit", "m²", "reference area unit")
	cmd.Flags().IntVar(&years, "amortization", 0, "amortization years applied to every element")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				ps, err := svc.ListProjects(ctx)
				if err != nil {
					return err
				}
				return a.render(cmd, ps, func(w io.Writer) {
					fmt.Fprintln(w, "ID\tName\tSource\tLast calculated")
					fmt.Fprintln(w, "--\t----\t------\t---------------")
					for i := range ps {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
							ps[i].ID, ps[i].Name, orDash(ps[i].PreferredSource), formatTime(ps[i].LastCalculated))
					}
				})
			})
		},
	}
}

func newProjectShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				p, err := svc.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, p, func(w io.Writer) { renderProject(w, p) })
			})
		},
	}
}

func renderProject(w io.Writer, p *store.Project) {
	fmt.Fprintf(w, "ID\t%s\n", p.ID)
	fmt.Fprintf(w, "Name\t%s\n", p.Name)
	fmt.Fprintf(w, "Source\t%s\n", orDash(p.PreferredSource))
	if p.ClassificationSystem != "" {
		fmt.Fprintf(w, "Classification\t%s\n", p.ClassificationSystem)
	}
	if p.AreaValue != nil {
		fmt.Fprintf(w, "Area\t%s %s (%s)\n", formatNumber(*p.AreaValue), p.AreaUnit, orDash(p.AreaType))
	}
	if p.AmortizationOverride != nil {
		fmt.Fprintf(w, "Amortization\t%d years\n", *p.AmortizationOverride)
	}
	fmt.Fprintf(w, "Totals\t%s\n", formatValues(p.TotalValues()))
	fmt.Fprintf(w, "Last calculated\t%s\n", formatTime(p.LastCalculated))
}

func newProjectSourceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "source <project-id> <source>",
		Short: "Change the preferred data source",
		Long:  "Change the preferred data source of a project. Every existing match is cleared when the source changes.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.SetPreferredSource(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					if !res.Changed {
						fmt.Fprintf(w, "Source already %s\n", res.Source)
						return
					}
					fmt.Fprintf(w, "Source set to %s, %d match(es) cleared\n", res.Source, res.ClearedMatches)
				})
			})
		},
	}
}

func newProjectMaterialsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "materials <project-id>",
		Short: "List the distinct materials of a project with their matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				mats, err := svc.ProjectMaterials(ctx, args[0])
				if err != nil {
					return err
				}
				return a.render(cmd, mats, func(w io.Writer) { renderProjectMaterials(w, mats) })
			})
		},
	}
}

func renderProjectMaterials(w io.Writer, mats []store.ProjectMaterial) {
	fmt.Fprintln(w, "Material\tMatch\tScore\tMethod\tDensity")
	fmt.Fprintln(w, "--------\t-----\t-----\t------\t-------")
	for i := range mats {
		m := mats[i].Match()
		if m == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", mats[i].Name, formatOptional(mats[i].Density))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			mats[i].Name, m.MaterialID, m.Score, m.Method, formatOptional(mats[i].Density))
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project-id> <elements.json>",
		Short: "Import parsed building elements",
		Long: `Import building elements with their material layers from a JSON file
("-" reads stdin). The file holds either an array of elements or an
object with an "elements" array. The project is recalculated afterwards.`,
		Example: `  lcamatch import 01J9Z3 elements.json`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := readElements(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.ImportElements(ctx, args[0], elements)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Elements created\t%d\n", res.ElementsCreated)
					fmt.Fprintf(w, "Elements updated\t%d\n", res.ElementsUpdated)
					fmt.Fprintf(w, "Layers\t%d\n", res.Layers)
					fmt.Fprintf(w, "Materials created\t%d\n", res.MaterialsCreated)
					if res.Calculation != nil {
						fmt.Fprintf(w, "Totals\t%s\n", formatValues(res.Calculation.Totals))
					}
				})
			})
		},
	}
}

var errNoElements = errors.New("element file contains no elements")

// readElements decodes an element list from path, or from stdin for "-".
func readElements(stdin io.Reader, path string) ([]store.ElementInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading elements: %w", err)
	}

	var elements []store.ElementInput
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &elements)
	} else {
		var wrapped struct {
			Elements []store.ElementInput `json:"elements"`
		}
		err = json.Unmarshal(trimmed, &wrapped)
		elements = wrapped.Elements
	}
	if err != nil {
		return nil, fmt.Errorf("decoding elements from %s: %w", path, err)
	}
	if len(elements) == 0 {
		return nil, errNoElements
	}
	return elements, nil
}

func newDensityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "density <project-id> <material> <kg/m³>",
		Short: "Override the density of a project material",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			density, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid density %q: %w", args[2], err)
			}
			return a.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.SetDensity(ctx, args[0], args[1], &density)
				if err != nil {
					return err
				}
				return a.render(cmd, res, func(w io.Writer) {
					fmt.Fprintf(w, "Totals\t%s\n", formatValues(res.Totals))
				})
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
