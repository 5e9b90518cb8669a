// Package deps locates the external programs dashgrab runs.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Tool is an external program a pipeline step shells out to.
type Tool struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Probe is the outcome of resolving a Tool.
type Probe struct {
	Tool
	// Path is the executable that will run, empty when the tool is missing.
	Path      string
	Available bool
	Detail    string
}

// FFmpeg describes the muxer configured as command. Without it DASH
// video options are hidden, so it is optional.
func FFmpeg(command string) Tool {
	return Tool{
		Name:     "FFmpeg",
		Command:  command,
		Purpose:  "Combines DASH video and audio tracks",
		Optional: true,
	}
}

// executable is swapped in tests.
var executable = os.Executable

// Resolve locates tool. A path is used as given; a bare name is looked up
// on PATH and then next to the running dashgrab binary, so a bundled ffmpeg
// works without touching PATH.
func Resolve(tool Tool) Probe {
	tool.Command = strings.TrimSpace(tool.Command)
	tool.Purpose = strings.TrimSpace(tool.Purpose)
	probe := Probe{Tool: tool}

	if tool.Command == "" {
		probe.Detail = "command not configured"
		return probe
	}
	if path, err := exec.LookPath(tool.Command); err == nil {
		probe.Path, probe.Available = path, true
		return probe
	}
	if !strings.ContainsAny(tool.Command, `/\`) {
		if candidate, ok := bundled(tool.Command); ok {
			probe.Path, probe.Available = candidate, true
			return probe
		}
	}
	probe.Detail = fmt.Sprintf("binary %q not found", tool.Command)
	return probe
}

// ResolveAll resolves every tool, keeping their order.
func ResolveAll(tools []Tool) []Probe {
	probes := make([]Probe, 0, len(tools))
	for _, tool := range tools {
		probes = append(probes, Resolve(tool))
	}
	return probes
}

func bundled(name string) (string, bool) {
	self, err := executable()
	if err != nil {
		return "", false
	}
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		name += ".exe"
	}
	candidate := filepath.Join(filepath.Dir(self), name)
	info, err := os.Stat(candidate)
	if err != nil || !isExecutable(info) {
		return "", false
	}
	return candidate, true
}

func isExecutable(info os.FileInfo) bool {
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
