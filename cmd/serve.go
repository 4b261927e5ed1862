// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"patchbay/internal/analysis"
	"patchbay/internal/engine"
	"patchbay/internal/log"
	"patchbay/internal/transport"
	"patchbay/internal/transport/udp"
	"patchbay/internal/unit"
	"patchbay/pkg/bitint"
)

const shutdownTimeout = 2 * time.Second

func newServeCommand(o *options) *cobra.Command {
	var (
		addr   string
		noGate bool
	)
	cmd := &cobra.Command{
		Use:   "serve <patch.yaml>",
		Short: "Run a patch in real time and stream its spectrum over WebSocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				o.cfg.Transport.WSAddr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch o.cfg.Engine.Precision {
			case 32:
				return serve[float32](ctx, o, args[0], !noGate)
			default:
				return serve[float64](ctx, o, args[0], !noGate)
			}
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "WebSocket listen address (default from config)")
	cmd.Flags().BoolVar(&noGate, "no-gate", false, "Analyse every block regardless of level")
	o.addControlFlag(cmd)
	return cmd
}

// serve runs the engine and the spectrum transport until ctx is cancelled or
// either of them fails.
func serve[T unit.Sample](ctx context.Context, o *options, path string, gate bool) error {
	cfg := o.cfg
	p, err := loadPatch[T](o, path)
	if err != nil {
		return err
	}
	e, err := engine.New[T](p.Net, cfg.Engine.SampleRate, cfg.Engine.BlockSize)
	if err != nil {
		return err
	}

	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return err
	}
	ws := transport.NewWebSocketTransport(cfg.Transport.WSAddr, cfg.Transport.SendInterval)
	fftSize := bitint.NextPowerOfTwo(cfg.Analysis.FFTSize)
	processor, err := analysis.NewProcessor(fftSize, cfg.Engine.SampleRate, window, ws)
	if err != nil {
		return fmt.Errorf("failed to create analyser: %w", err)
	}
	if cfg.Transport.UDPAddr != "" {
		sender, err := udp.NewSender(cfg.Transport.UDPAddr)
		if err != nil {
			return err
		}
		publisher, err := udp.NewPublisher(cfg.Transport.UDPInterval, sender, processor)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}
	e.SetAnalyser(processor)
	e.SetGateThreshold(cfg.Analysis.GateThreshold)
	if !gate {
		e.DisableGate()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(ws.ListenAndServe)
	g.Go(func() error {
		return e.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return ws.Shutdown(shutdownCtx)
	})

	log.Infof("serve: %s at %.0f Hz, block %d, FFT %d (%v)", path, cfg.Engine.SampleRate, cfg.Engine.BlockSize, fftSize, window)
	err = g.Wait()
	log.Infof("serve: stopped after %d frames", e.Frames())
	return err
}
