// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"

	"patchbay/cmd"
	"patchbay/internal/log"
	"patchbay/pkg/build"
)

// main is the entry point for patchbay.
//
// Startup (Cold Path):
//   - Initialize build information
//   - Load configuration and set the log level (root command pre-run)
//
// Commands:
//   - units, render, route and spectrum run to completion and exit
//   - serve runs the engine in real time until interrupted
func main() {
	// Development builds carry no ldflags and report "unknown".
	if err := build.Initialize(); err != nil {
		log.Debugf("build: %v, using development build info", err)
	}

	if err := cmd.Execute(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
