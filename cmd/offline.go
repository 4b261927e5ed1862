// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"patchbay/internal/analysis"
	"patchbay/internal/engine"
	"patchbay/internal/log"
	"patchbay/internal/patch"
	"patchbay/internal/signal"
	"patchbay/internal/unit"
)

func newUnitsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List the unit kinds a patch may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tPARAMETERS\tDESCRIPTION")
			for _, k := range patch.Kinds() {
				params := make([]string, 0, len(k.Params))
				for _, name := range k.ParamNames() {
					params = append(params, fmt.Sprintf("%s=%g", name, k.Params[name]))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", k.Name, strings.Join(params, " "), k.Doc)
			}
			return w.Flush()
		},
	}
}

func newRenderCommand(o *options) *cobra.Command {
	var (
		duration time.Duration
		output   string
	)
	cmd := &cobra.Command{
		Use:   "render <patch.yaml>",
		Short: "Run a patch offline and print interleaved frames as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			if cmd.Flags().Changed("duration") {
				if duration < 0 {
					return fmt.Errorf("duration must not be negative, got %v", duration)
				}
				cfg.Render.Duration = duration
			}
			if cmd.Flags().Changed("output") {
				cfg.Render.Output = output
			}
			frames := int(math.Round(cfg.Render.Duration.Seconds() * cfg.Engine.SampleRate))

			w := cmd.OutOrStdout()
			var file *os.File
			if cfg.Render.Output != "" && cfg.Render.Output != "-" {
				f, err := os.Create(cfg.Render.Output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				file, w = f, f
			}

			var err error
			switch cfg.Engine.Precision {
			case 32:
				err = render[float32](o, args[0], w, frames)
			default:
				err = render[float64](o, args[0], w, frames)
			}
			if err != nil {
				return err
			}
			if file != nil {
				if err := file.Sync(); err != nil {
					return fmt.Errorf("failed to write output file: %w", err)
				}
				log.Infof("render: wrote %d frames to %s", frames, file.Name())
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "Length to render, e.g. 500ms or 2s (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default from config)")
	o.addControlFlag(cmd)
	return cmd
}

func render[T unit.Sample](o *options, path string, w io.Writer, frames int) error {
	p, err := loadPatch[T](o, path)
	if err != nil {
		return err
	}
	e, err := engine.New[T](p.Net, o.cfg.Engine.SampleRate, o.cfg.Engine.BlockSize)
	if err != nil {
		return err
	}
	return e.Render(w, frames)
}

func newRouteCommand(o *options) *cobra.Command {
	var frequencies []float64
	cmd := &cobra.Command{
		Use:   "route <patch.yaml>",
		Short: "Print what each output does to a linear input at the given frequencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPatch[float64](o, args[0])
			if err != nil {
				return err
			}
			p.Net.Reset(o.cfg.Engine.SampleRate)

			probe := signal.NewFrame(p.Net.Inputs())
			for i := range probe {
				probe[i] = signal.Linear(1, 0)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FREQUENCY\tOUTPUT\tSIGNAL")
			for i, frame := range analysis.Describe[float64](p.Net, probe, frequencies) {
				for ch, s := range frame {
					fmt.Fprintf(w, "%g Hz\tout.%d\t%v\n", frequencies[i], ch, s)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().Float64SliceVarP(&frequencies, "freq", "f", []float64{100, 1000, 10000}, "Frequencies in Hz")
	o.addControlFlag(cmd)
	return cmd
}

func newSpectrumCommand(o *options) *cobra.Command {
	var (
		length  int
		input   int
		channel int
		points  int
	)
	cmd := &cobra.Command{
		Use:   "spectrum <patch.yaml>",
		Short: "Measure the impulse response of a patch and print its magnitude spectrum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if points < 1 {
				return fmt.Errorf("points must be positive, got %d", points)
			}
			p, err := loadPatch[float64](o, args[0])
			if err != nil {
				return err
			}
			sampleRate := o.cfg.Engine.SampleRate
			p.Net.Reset(sampleRate)

			response, err := analysis.ImpulseResponse[float64](p.Net, input, length)
			if err != nil {
				return err
			}
			if channel < 0 || channel >= len(response) {
				return fmt.Errorf("output %d out of range (%d outputs)", channel, len(response))
			}
			bins, err := analysis.Spectrum(response[channel], sampleRate)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FREQUENCY\tLEVEL\tPHASE")
			for _, b := range pickBins(bins, points) {
				fmt.Fprintf(w, "%.1f Hz\t%.2f dB\t%.3f rad\n", b.Frequency, b.Decibels(), b.Phase)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 4096, "Impulse response length in samples")
	cmd.Flags().IntVar(&input, "input", 0, "Global input that receives the impulse")
	cmd.Flags().IntVar(&channel, "channel", 0, "Global output to analyse")
	cmd.Flags().IntVarP(&points, "points", "p", 24, "Number of log-spaced rows to print")
	o.addControlFlag(cmd)
	return cmd
}

// pickBins selects up to points bins at log-spaced frequencies from the
// first non-DC bin to Nyquist.
func pickBins(bins []analysis.Bin, points int) []analysis.Bin {
	if len(bins) <= points+1 {
		return bins
	}
	lo, hi := 1.0, float64(len(bins)-1)
	picked := make([]analysis.Bin, 0, points)
	last := -1
	for i := range points {
		x := lo
		if points > 1 {
			x = lo * math.Pow(hi/lo, float64(i)/float64(points-1))
		}
		k := int(math.Round(x))
		if k == last {
			continue
		}
		picked = append(picked, bins[k])
		last = k
	}
	return picked
}
