package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nvandessel/hopfield/internal/service"
)

// isolateHome sets HOME to a temp directory to avoid reading a real ~/.hopfield/
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"HOPFIELD_SIDE", "HOPFIELD_ADDR", "HOPFIELD_LOG_LEVEL", "HOPFIELD_TRACE_DIR", "HOPFIELD_HISTORY_PATH", "HOPFIELD_RATE_LIMIT"} {
		t.Setenv(k, "")
	}
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "serve", "mcp-server", "recall", "config"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "hopfield version "+version) {
		t.Errorf("output = %q", out)
	}

	out, err = run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestRecallCmd(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	letterT := writeFile(t, dir, "t.txt", "###\n.#.\n.#.\n")
	noisy := writeFile(t, dir, "noisy.txt", "##.\n.#.\n.#.\n")

	out, err := run(t, "recall", "--side", "3", "--learn", letterT, noisy)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !strings.HasPrefix(out, "###\n.#.\n.#.\n") {
		t.Errorf("recalled grid not restored:\n%s", out)
	}
	if !strings.Contains(out, "energy: -36") {
		t.Errorf("missing energy line:\n%s", out)
	}
}

func TestRecallCmd_JSON(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	letterT := writeFile(t, dir, "t.txt", "###\n.#.\n.#.\n")

	// recall the stored pattern itself
	out, err := run(t, "recall", "--json", "--side", "3", "--learn", letterT, letterT)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	var res service.RecallResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !res.Converged || res.Energy != -36 {
		t.Errorf("result = %+v, want converged at energy -36", res)
	}
}

func TestRecallCmd_Noise(t *testing.T) {
	isolateHome(t)
	var sb strings.Builder
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			if (r*7+c*3)%5 < 2 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	pattern := writeFile(t, t.TempDir(), "pattern.txt", sb.String())

	recallJSON := func() recallOutput {
		t.Helper()
		out, err := run(t, "recall", "--json", "--side", "10", "--learn", pattern, "--noise", "0.2", "--seed", "7")
		if err != nil {
			t.Fatalf("recall: %v", err)
		}
		var res recallOutput
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		return res
	}

	first, second := recallJSON(), recallJSON()
	if !reflect.DeepEqual(first.Noisy, second.Noisy) {
		t.Error("same seed produced different noisy grids")
	}
	if first.Seed == nil || *first.Seed != 7 {
		t.Errorf("seed = %v, want 7", first.Seed)
	}

	want, err := readGridFile(pattern, 10)
	if err != nil {
		t.Fatalf("readGridFile: %v", err)
	}
	flipped := 0
	for r := range want {
		for c := range want[r] {
			if first.Noisy[r][c] != want[r][c] {
				flipped++
			}
		}
	}
	if flipped*2 >= 100 {
		t.Fatalf("seed flipped %d of 100 cells", flipped)
	}
	if !first.Converged || !reflect.DeepEqual(first.Grid, want) {
		t.Errorf("recall from %d flipped cells did not restore the pattern", flipped)
	}

	out, err := run(t, "recall", "--side", "10", "--learn", pattern, "--noise", "0.2", "--seed", "7")
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if !strings.HasPrefix(out, "noisy input (p=0.2, seed 7):") || !strings.Contains(out, "recalled:\n"+sb.String()) {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestRecallCmd_Errors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "##\n..\n")
	bad := writeFile(t, dir, "bad.txt", "##\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no learn files", []string{"recall", "--side", "2", good}},
		{"missing file", []string{"recall", "--side", "2", "--learn", filepath.Join(dir, "nope.txt"), good}},
		{"short grid", []string{"recall", "--side", "2", "--learn", bad, good}},
		{"no args", []string{"recall", "--side", "2", "--learn", good}},
		{"noise out of range", []string{"recall", "--side", "2", "--learn", good, "--noise", "1.5"}},
		{"too many args", []string{"recall", "--side", "2", "--learn", good, good, good}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigShow(t *testing.T) {
	isolateHome(t)
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "network:\n  side: 7\n")

	out, err := run(t, "config", "show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "side: 7") {
		t.Errorf("yaml output = %q", out)
	}

	out, err = run(t, "config", "show", "--json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config show --json: %v", err)
	}
	var cfg struct {
		Network struct {
			Side int `json:"side"`
		} `json:"network"`
	}
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if cfg.Network.Side != 7 {
		t.Errorf("side = %d, want 7", cfg.Network.Side)
	}
}

func TestConfigShow_Invalid(t *testing.T) {
	isolateHome(t)
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "network:\n  side: 0\n")

	if _, err := run(t, "config", "show", "--config", cfgPath); err == nil {
		t.Error("expected validation error for side 0")
	}
}

func TestConfigPath(t *testing.T) {
	isolateHome(t)
	out, err := run(t, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), filepath.Join(".hopfield", "config.yaml")) {
		t.Errorf("path = %q", out)
	}
}
