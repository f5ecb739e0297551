package main

import (
	"fmt"

	"github.com/opd-ai/fxswitch/effect"
	"github.com/spf13/cobra"
)

func newEffectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effects",
		Short: "List selectable effects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range effect.All() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
