package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm [virtual paths...]",
	Short: "Remove stored files from the container",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for _, virtualPath := range args {
			if err := Nest.FS.Delete(ctx, virtualPath); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", virtualPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
