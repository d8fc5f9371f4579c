// Package cmd provides CLI commands for the benchctl binary. Every
// command addresses one instrument endpoint, given directly with
// --addr or resolved from the client config with --target bench.alias.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pfjsystems/virtbench/internal/benchcli"
	"github.com/pfjsystems/virtbench/internal/configcli"
)

var (
	overrideAddr string
	targetRef    string
)

// addTargetFlags installs the shared addressing flags on a command.
func addTargetFlags(c *cobra.Command) {
	c.Flags().StringVar(&overrideAddr, "addr", "", "Instrument address as host:port, bypassing the client config")
	c.Flags().StringVarP(&targetRef, "target", "t", "", "Instrument reference as bench.alias (or a bare alias on the default bench)")
}

// resolveAddr picks the endpoint address from the flags, consulting the
// client config only when --addr was not given.
func resolveAddr() (string, error) {
	if overrideAddr != "" {
		return overrideAddr, nil
	}
	if targetRef == "" {
		return "", fmt.Errorf("no instrument selected: use --addr or --target")
	}
	cfg, err := configcli.LoadCTLConfig()
	if err != nil {
		return "", err
	}
	return cfg.ResolveTarget(targetRef)
}

// dialTarget resolves the selected instrument and connects to it.
func dialTarget() (*benchcli.Client, error) {
	addr, err := resolveAddr()
	if err != nil {
		return nil, err
	}
	return benchcli.Dial(addr)
}
