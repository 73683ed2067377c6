package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cpis/internal/domain/cpis"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect and validate scoring policies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <policy-file>",
		Short: "Check a policy file overlaid on the defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cpis.LoadPolicyFile(args[0])
			if err != nil {
				return exitError(2, "%v", err)
			}
			if err := p.Validate(); err != nil {
				return exitError(2, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "policy ok: %d dimensions, %d grades, smoothing k %g, confidence k %g\n",
				len(p.Weights), len(p.Grades), p.SmoothingK, p.ConfidenceK)
			return nil
		},
	})

	var policyPath string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(policyPath)
			if err != nil {
				return exitError(2, "%v", err)
			}
			return writePolicy(cmd.OutOrStdout(), engine.Policy())
		},
	}
	show.Flags().StringVar(&policyPath, "policy", "", "Policy YAML overlaid on the defaults")
	cmd.AddCommand(show)
	return cmd
}

func loadEngine(policyPath string) (*cpis.Engine, error) {
	p := cpis.DefaultPolicy()
	if policyPath != "" {
		loaded, err := cpis.LoadPolicyFile(policyPath)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	return cpis.NewEngine(p)
}

func writePolicy(w io.Writer, p cpis.Policy) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}
