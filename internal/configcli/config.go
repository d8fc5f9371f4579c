// Package configcli handles loading and managing local benchctl
// configuration. This includes named benches and the instrument
// addresses that belong to each of them.
package configcli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pfjsystems/virtbench/internal/configloader"
)

// BenchConfig maps instrument aliases to their protocol endpoints
// (host:port) for one bench.
type BenchConfig struct {
	Instruments map[string]string `yaml:"instruments"`
}

// CTLConfig holds the entire client-side benchctl configuration.
type CTLConfig struct {
	Benches map[string]BenchConfig `yaml:"benches"`
	Default string                 `yaml:"default,omitempty"`
}

// LoadCTLConfig loads the benchctl config file or returns an error.
// The file is resolved like the daemon config: $VIRTBENCH_CONFIG,
// then ~/.virtbench/benchctl/benchctl.yaml, then /etc/virtbench.
func LoadCTLConfig() (*CTLConfig, error) {
	cfgPath, err := configloader.ResolveConfigPath("benchctl", "benchctl.yaml")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchctl.yaml: %w", err)
	}

	var config CTLConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse benchctl.yaml: %w", err)
	}
	return &config, nil
}

// ResolveTarget turns a "bench.alias" reference into a dialable
// address. A bare alias is looked up on the default bench.
func (c *CTLConfig) ResolveTarget(target string) (string, error) {
	bench := ""
	alias := target
	if i := strings.IndexByte(target, '.'); i >= 0 {
		bench = target[:i]
		alias = target[i+1:]
	}
	if bench == "" {
		bench = c.GuessDefaultBench()
	}

	b, ok := c.Benches[bench]
	if !ok {
		return "", fmt.Errorf("bench '%s' not found", bench)
	}
	addr, ok := b.Instruments[alias]
	if !ok {
		return "", fmt.Errorf("instrument '%s' not found on bench '%s'", alias, bench)
	}
	return addr, nil
}

// ListBenches returns the configured bench names, sorted.
func (c *CTLConfig) ListBenches() []string {
	var list []string
	for name := range c.Benches {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// GuessDefaultBench returns the configured default bench, or the first
// bench name if none is set, or empty string if none configured.
func (c *CTLConfig) GuessDefaultBench() string {
	if c.Default != "" {
		return c.Default
	}
	for _, name := range c.ListBenches() {
		return name
	}
	return ""
}
