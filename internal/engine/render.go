// SPDX-License-Identifier: MIT
package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"patchbay/internal/unit"
)

// Render processes frames samples and writes them to w as text, one line
// per frame with channels separated by spaces.
func (e *Engine[T]) Render(w io.Writer, frames int) error {
	if frames < 0 {
		return fmt.Errorf("frame count must not be negative, got %d", frames)
	}
	bw := bufio.NewWriter(w)
	bits := sampleBits[T]()
	rate := int(e.sampleRate)

	err := e.ProcessFrames(frames, func(size int) error {
		e.output.Interleave(&e.frame, size, rate)
		channels := e.frame.Format.NumChannels
		if channels == 0 {
			return nil
		}
		for i := 0; i < len(e.frame.Data); i += channels {
			line := e.line[:0]
			for c, v := range e.frame.Data[i : i+channels] {
				if c > 0 {
					line = append(line, ' ')
				}
				line = strconv.AppendFloat(line, v, 'g', -1, bits)
			}
			line = append(line, '\n')
			e.line = line
			if _, err := bw.Write(line); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// sampleBits returns the bit size used to format samples of type T.
func sampleBits[T unit.Sample]() int {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return 32
	}
	return 64
}
