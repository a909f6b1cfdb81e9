package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunWritesCloud(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ball.xyz")
	scenePath := filepath.Join(dir, "ball.scene")
	if err := os.WriteFile(scenePath, []byte("sphere (1,1,1,1) (0,0,0) (0,0,0) (1,1,1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"-density", "20", "-format", "xyz", "-o", out, scenePath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 100 {
		t.Errorf("got %d xyz lines, want a few hundred", len(lines))
	}
	if f := strings.Fields(lines[0]); len(f) != 6 {
		t.Errorf("xyz line has %d fields, want 6: %q", len(f), lines[0])
	}
}

func TestRunStdout(t *testing.T) {
	scenePath := filepath.Join("examples", "bored_cube.scene")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-density", "10", "-format", "ply", scenePath}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "ply\n") {
		t.Error("stdout is not PLY")
	}
}

func TestRunFailures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.scene")
	if err := os.WriteFile(bad, []byte("prism\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no file", nil, 2},
		{"missing file", []string{filepath.Join(dir, "nope.scene")}, 1},
		{"parse error", []string{bad}, 1},
		{"bad format", []string{"-format", "obj", bad}, 1},
		{"bad density", []string{"-density", "lots", bad}, 1},
		{"unknown flag", []string{"-frobnicate", bad}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.want, stderr.String())
			}
		})
	}
}
