package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/service"
)

// Opener builds the service a command runs against.
type Opener func(ctx context.Context, cfg *config.Config) (*service.Service, error)

// app holds the state shared by every command of one invocation.
type app struct {
	open    Opener
	cfg     *config.Config
	logs    *logging.Result
	cfgPath string
	output  string
	debug   bool
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRootCmd creates the root command of the lcamatch CLI, backed by a
// service opened from the loaded configuration.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithOpener(ver, service.Open)
}

// NewRootCmdWithOpener creates the root command with an explicit service
// constructor for testability.
func NewRootCmdWithOpener(ver string, open Opener) *cobra.Command {
	a := &app{open: open}

	cmd := &cobra.Command{
		Use:           "lcamatch",
		Short:         "Match building materials to LCA datasets",
		Long:          "lcamatch: match BIM material names to KBOB, Ökobaudat and OpenEPD records and compute embodied emissions",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.logs.Close()
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default ~/.lcamatch/config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().
		StringVarP(&a.output, "output", "o", "", "output format: table or json (default table on a terminal)")

	cmd.AddCommand(
		newServeCmd(a),
		newSourcesCmd(a),
		newSearchCmd(a),
		newMaterialCmd(a),
		newProjectCmd(a),
		newImportCmd(a),
		newCandidatesCmd(a),
		newMatchCmd(a),
		newUnmatchCmd(a),
		newAutoMatchCmd(a),
		newDensityCmd(a),
		newRecalcCmd(a),
		newEmissionsCmd(a),
		newExportCmd(a),
	)
	return cmd
}

const rootCmdExample = `  # Sync every enabled source
  lcamatch sources sync

  # Search KBOB for concrete
  lcamatch search Beton --source kbob

  # Create a project and import its elements
  lcamatch project create --name "Schulhaus" --source kbob --area 1200
  lcamatch import <project-id> elements.json

  # Match materials and show the results
  lcamatch automatch <project-id>
  lcamatch emissions <project-id>

  # Serve the HTTP API
  lcamatch serve --addr :8080`

// setup loads the configuration, resolves the output format and installs
// the logger on the command context.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	config.SetGlobalConfig(cfg)
	a.cfg = cfg

	switch a.output {
	case "":
		a.output = outputJSON
		if isTerminal(os.Stdout) {
			a.output = outputTable
		}
	case outputTable, outputJSON:
	default:
		return fmt.Errorf("unsupported output format %q (want table or json)", a.output)
	}

	a.logs = setupLogging(cmd, cfg.Logging, a.debug)
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgPath != "" {
		cfg, err := config.Load(a.cfgPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", a.cfgPath, err)
		}
		return cfg, nil
	}
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withService opens the service for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	svc, err := a.open(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("opening service: %w", err)
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logging.FromContext(ctx).Warn().
				Ctx(ctx).
				Str("component", "cli").
				Err(cerr).
				Msg("closing service failed")
		}
	}()
	return fn(ctx, svc)
}
