package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "presence-room/"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under from importing anything under the listed
// prefixes. The simulation core must stay independent of transport and
// process wiring.
type rule struct {
	from      string
	forbidden []string
}

var rules = []rule{
	{from: "internal/world", forbidden: []string{"internal/net", "internal/state", "internal/sim", "internal/gateway", "internal/relay", "internal/journal", "internal/app", "internal/config"}},
	{from: "internal/state", forbidden: []string{"internal/net", "internal/sim", "internal/gateway", "internal/relay", "internal/journal", "internal/app", "internal/config"}},
	{from: "internal/sim", forbidden: []string{"internal/net/ws", "internal/gateway", "internal/relay", "internal/journal", "internal/app", "internal/config"}},
	{from: "internal/gateway", forbidden: []string{"internal/net/ws", "internal/relay", "internal/sim", "internal/app"}},
	{from: "logging", forbidden: []string{"internal/"}},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./internal/...", "./logging/...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	violations, err := check(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

// check decodes a `go list -json` stream and returns sorted violations.
func check(r io.Reader) ([]string, error) {
	decoder := json.NewDecoder(r)
	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		violations = append(violations, violationsFor(pkg)...)
	}
	sort.Strings(violations)
	return violations, nil
}

func violationsFor(pkg packageInfo) []string {
	local := strings.TrimPrefix(pkg.ImportPath, modulePath)
	var out []string
	for _, r := range rules {
		if !within(local, r.from) {
			continue
		}
		for _, imp := range pkg.Imports {
			if !strings.HasPrefix(imp, modulePath) {
				continue
			}
			target := strings.TrimPrefix(imp, modulePath)
			for _, forbidden := range r.forbidden {
				if within(target, strings.TrimSuffix(forbidden, "/")) {
					out = append(out, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					break
				}
			}
		}
	}
	return out
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
