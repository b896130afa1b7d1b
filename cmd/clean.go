package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanq16/ripfetch/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [OUTPUT_PATH]",
		Short: "Remove leftover .part and .tmp working files of a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := utils.CleanArtifacts(args[0])
			for _, path := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "Removed", path)
			}
			if err != nil {
				return fmt.Errorf("error cleaning up working files: %w", err)
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clean")
			}
			return nil
		},
	}
}
