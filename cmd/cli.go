// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"patchbay/internal/config"
	"patchbay/internal/log"
	"patchbay/internal/patch"
	"patchbay/internal/unit"
	"patchbay/pkg/build"
)

// options are shared by every subcommand.
type options struct {
	configPath string
	verbose    bool
	controls   map[string]string
	cfg        *config.Config
}

// NewRootCommand builds the patchbay command tree.
func NewRootCommand() *cobra.Command {
	info := build.GetInfo()
	o := &options{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         build.Description,
		Version:       info.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(o.configPath)
			if err != nil {
				return err
			}
			level := cfg.Level()
			if o.verbose {
				level = log.LevelDebug
			}
			log.SetLevel(level)
			o.cfg = cfg
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "",
		"Configuration file. Defaults to "+config.DefaultPath+" when present")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.AddCommand(
		newUnitsCommand(),
		newRenderCommand(o),
		newRouteCommand(o),
		newSpectrumCommand(o),
		newServeCommand(o),
	)
	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// addControlFlag registers --set on commands that build a patch.
func (o *options) addControlFlag(cmd *cobra.Command) {
	cmd.Flags().StringToStringVar(&o.controls, "set", nil,
		"Set a control before running: name=value for a var unit, N=value for parameter tag N")
}

// loadPatch reads and builds the patch at path, then applies --set values.
func loadPatch[T unit.Sample](o *options, path string) (*patch.Patch[T], error) {
	d, err := patch.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := patch.Build[T](d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := applyControls(p, o.controls); err != nil {
		return nil, err
	}
	log.Debugf("patch: %s built with %d units", path, p.Net.Len())
	return p, nil
}

func applyControls[T unit.Sample](p *patch.Patch[T], controls map[string]string) error {
	names := make([]string, 0, len(controls))
	for name := range controls {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, err := strconv.ParseFloat(controls[name], 64)
		if err != nil {
			return fmt.Errorf("control %s: %w", name, err)
		}
		if tag, err := strconv.Atoi(name); err == nil {
			p.Net.Set(unit.Tag(tag), value)
			log.Debugf("patch: tag %d set to %v", tag, value)
			continue
		}
		shared, ok := p.Controls[name]
		if !ok {
			return fmt.Errorf("patch has no var unit %q", name)
		}
		shared.Set(value)
		log.Debugf("patch: control %s set to %v", name, value)
	}
	return nil
}
