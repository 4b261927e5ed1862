// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchbay/internal/graph"
	"patchbay/internal/transport/udp"
)

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patchbay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestUnitsListsEveryKind(t *testing.T) {
	out, err := run(t, context.Background(), "units")
	require.NoError(t, err)
	for _, kind := range []string{"constant", "delay", "envelope", "feedback", "gain", "lowpole", "sine", "var"} {
		assert.Contains(t, out, kind)
	}
	assert.Contains(t, out, "cutoff=1000")
}

func TestRender(t *testing.T) {
	out, err := run(t, context.Background(), "render", "testdata/level.yaml", "--duration", "1ms")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 48)
	for _, line := range got {
		assert.Equal(t, "1", line)
	}
}

func TestRenderControls(t *testing.T) {
	tests := []struct {
		name string
		set  string
		want string
	}{
		{"var unit", "level=0.25", "0.5"},
		{"parameter tag", "7=4", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, context.Background(), "render", "testdata/level.yaml", "-d", "100us", "--set", tt.set)
			require.NoError(t, err)
			for _, line := range lines(out) {
				assert.Equal(t, tt.want, line)
			}
		})
	}

	_, err := run(t, context.Background(), "render", "testdata/level.yaml", "--set", "missing=1")
	assert.ErrorContains(t, err, `no var unit "missing"`)
	_, err = run(t, context.Background(), "render", "testdata/level.yaml", "--set", "level=loud")
	assert.Error(t, err)
}

func TestRenderToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	out, err := run(t, context.Background(), "render", "testdata/level.yaml", "-d", "1ms", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, lines(string(data)), 48)
}

func TestRenderUsesConfig(t *testing.T) {
	cfg := writeConfig(t, "engine:\n  sample_rate: 8000\n  block_size: 16\n  precision: 32\nrender:\n  duration: 2ms\n")
	out, err := run(t, context.Background(), "--config", cfg, "render", "testdata/level.yaml")
	require.NoError(t, err)
	assert.Len(t, lines(out), 16)
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing patch", []string{"render", "testdata/nope.yaml"}, "failed to read patch file"},
		{"cycle", []string{"render", "testdata/cycle.yaml"}, "cycle detected"},
		{"no patch", []string{"render"}, "accepts 1 arg"},
		{"negative duration", []string{"render", "testdata/level.yaml", "-d", "-1s"}, "must not be negative"},
		{"bad config", []string{"--config", "testdata/nope.yaml", "units"}, "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, context.Background(), tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := run(t, context.Background(), "render", "testdata/cycle.yaml")
	assert.ErrorIs(t, err, graph.ErrCycle)
}

func TestRoute(t *testing.T) {
	out, err := run(t, context.Background(), "route", "testdata/lowpass.yaml", "--freq", "0,1000")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 3)
	assert.Contains(t, got[1], "out.0")
	assert.Contains(t, got[1], "response(|1|")
	assert.Contains(t, got[2], "1000 Hz")
}

func TestSpectrum(t *testing.T) {
	out, err := run(t, context.Background(), "spectrum", "testdata/lowpass.yaml", "-n", "1024", "-p", "8")
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 9)
	assert.Contains(t, got[0], "LEVEL")
	assert.Contains(t, got[len(got)-1], "24000.0 Hz")

	_, err = run(t, context.Background(), "spectrum", "testdata/lowpass.yaml", "--channel", "3")
	assert.ErrorContains(t, err, "out of range")
	_, err = run(t, context.Background(), "spectrum", "testdata/lowpass.yaml", "-p", "0")
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := writeConfig(t, "transport:\n  ws_addr: 127.0.0.1:0\n")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := run(t, ctx, "--config", cfg, "serve", "testdata/level.yaml", "--no-gate")
	assert.NoError(t, err)
}

func TestServePublishesUDP(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	cfg := writeConfig(t, "analysis:\n  fft_size: 256\ntransport:\n  ws_addr: 127.0.0.1:0\n  udp_addr: "+
		conn.LocalAddr().String()+"\n  udp_interval: 5ms\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = run(t, ctx, "--config", cfg, "serve", "testdata/level.yaml", "--no-gate")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	pkt, err := udp.DecodePacket(buf[:n])
	require.NoError(t, err)
	assert.Len(t, pkt.Magnitudes, 129)
}

func TestServeBadAddress(t *testing.T) {
	_, err := run(t, context.Background(), "serve", "testdata/level.yaml", "--addr", "not-an-address")
	assert.Error(t, err)
}
