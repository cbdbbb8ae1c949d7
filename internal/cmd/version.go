// Package cmd holds the subcommands of peer-review.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/peer-review/pkg/version"
)

// NewVersionCmd returns `peer-review version [--json]`.
func NewVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeVersion(cmd.OutOrStdout(), version.GetVersion(), asJSON)
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "print build information as JSON")
	return cmd
}

func writeVersion(w io.Writer, info version.Info, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, info)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	return nil
}
