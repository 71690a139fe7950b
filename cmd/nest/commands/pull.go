package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull [virtual path] [real path]",
	Short: "Reconstruct a stored file to a real path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		virtualPath, destPath := args[0], args[1]
		ctx := cmd.Context()

		file, err := Nest.FS.OpenFile(ctx, virtualPath)
		if err != nil {
			return err
		}
		defer file.Close()

		start := time.Now()
		if err := file.Pull(ctx, destPath); err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}

		fmt.Printf("Pulled %s -> %s (%d bytes) in %v\n",
			file.Path(), destPath, file.Size(), time.Since(start))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
