// SPDX-License-Identifier: MIT
/*
Package engine drives a unit, usually a graph.Net, in fixed-size blocks:
- Arbitrary frame counts are split into blocks of at most buffer.MaxBufferSize
- Offline rendering writes interleaved frames as text
- Real-time pacing processes blocks at the sample rate until cancelled
- A peak gate decides which blocks reach the analyser

Thread Safety:
- ProcessBlock, Render and Run must not be called concurrently
- Gate settings and Frames use atomics and may be touched from any goroutine
- Buffers are pre-allocated so the block path does not allocate
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"

	"patchbay/internal/buffer"
	"patchbay/internal/log"
	"patchbay/internal/unit"
)

// ErrRunning is returned by Run while another Run is in progress.
var ErrRunning = errors.New("engine already running")

// Analyser consumes mono float64 blocks. *analysis.Processor satisfies it.
type Analyser interface {
	Write(samples []float64)
}

// pacingInterval is how often Run wakes up to catch up with the clock.
const pacingInterval = 5 * time.Millisecond

// Engine runs a unit block by block with pre-allocated buffers and an
// optional analyser behind a peak gate.
type Engine[T unit.Sample] struct {
	// Core configuration.
	unit       unit.Unit[T]
	sampleRate float64
	blockSize  int

	// Block buffers.
	input  *buffer.Buffer[T]
	output *buffer.Buffer[T]
	frame  audio.FloatBuffer // Interleaved scratch for Render.
	line   []byte

	// Analysis of output channel 0.
	analyser Analyser
	mono     []float64

	// Peak gate in front of the analyser.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64 // float64 bits, 0.0-1.0

	frames  atomic.Uint64
	running atomic.Bool
}

// New resets u to sampleRate and pre-allocates buffers for blockSize frames.
// The gate starts enabled at 0.1% of full scale.
func New[T unit.Sample](u unit.Unit[T], sampleRate float64, blockSize int) (*Engine[T], error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if blockSize < 1 || blockSize > buffer.MaxBufferSize {
		return nil, fmt.Errorf("block size %d outside 1..%d", blockSize, buffer.MaxBufferSize)
	}
	u.Reset(sampleRate)

	e := &Engine[T]{
		unit:       u,
		sampleRate: sampleRate,
		blockSize:  blockSize,
		input:      buffer.New[T](u.Inputs()),
		output:     buffer.New[T](u.Outputs()),
		mono:       make([]float64, buffer.MaxBufferSize),
	}
	e.gateEnabled.Store(true)
	e.SetGateThreshold(0.001)
	return e, nil
}

// SetAnalyser routes output channel 0 to a. Nil disables analysis.
func (e *Engine[T]) SetAnalyser(a Analyser) {
	e.analyser = a
}

// Input returns the buffer fed to the unit's inputs. Hosts write into it
// before each ProcessBlock; it is silent otherwise.
func (e *Engine[T]) Input() *buffer.Buffer[T] { return e.input }

// Output returns the buffer holding the latest block.
func (e *Engine[T]) Output() *buffer.Buffer[T] { return e.output }

// SampleRate returns the rate the unit was reset to.
func (e *Engine[T]) SampleRate() float64 { return e.sampleRate }

// BlockSize returns the configured block size.
func (e *Engine[T]) BlockSize() int { return e.blockSize }

// Frames returns the number of frames processed so far.
func (e *Engine[T]) Frames() uint64 { return e.frames.Load() }

// ProcessBlock runs one block of size frames through the unit and hands the
// first output channel to the analyser when the gate is open.
// Performance Critical (Hot Path):
// - No allocations of its own; the analyser and its transport may allocate
// - Gate check is a single pass over the block
func (e *Engine[T]) ProcessBlock(size int) {
	e.unit.Process(size, e.input.Channels(), e.output.Channels())
	e.frames.Add(uint64(size))

	if e.analyser == nil || e.output.Len() == 0 {
		return
	}
	block := e.output.At(0)[:size]
	if !e.gateOpen(block) {
		return
	}
	mono := e.mono[:size]
	for i, v := range block {
		mono[i] = float64(v)
	}
	e.analyser.Write(mono)
}

// ProcessFrames processes frames samples in blocks of at most BlockSize,
// calling fn after each block with its size.
func (e *Engine[T]) ProcessFrames(frames int, fn func(size int) error) error {
	for done := 0; done < frames; {
		size := min(e.blockSize, frames-done)
		e.ProcessBlock(size)
		if fn != nil {
			if err := fn(size); err != nil {
				return err
			}
		}
		done += size
	}
	return nil
}

// Run processes blocks in step with the wall clock until ctx is cancelled.
// If it falls more than a second behind it skips ahead instead of bursting.
func (e *Engine[T]) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(pacingInterval)
	defer ticker.Stop()

	start := time.Now()
	block := uint64(e.blockSize)
	maxLag := uint64(e.sampleRate)
	var produced uint64

	log.Debugf("engine: running at %.0f Hz in blocks of %d", e.sampleRate, e.blockSize)
	for {
		select {
		case <-ctx.Done():
			log.Debugf("engine: stopped after %d frames", produced)
			return nil
		case now := <-ticker.C:
			due := uint64(now.Sub(start).Seconds() * e.sampleRate)
			if due > produced+maxLag {
				log.Warnf("engine: fell behind by %d frames, skipping ahead", due-produced)
				produced = due - due%block
			}
			for produced+block <= due {
				e.ProcessBlock(e.blockSize)
				produced += block
			}
		}
	}
}

// peak returns the largest absolute sample in block.
func peak[T unit.Sample](block []T) T {
	var m T
	for _, v := range block {
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}
