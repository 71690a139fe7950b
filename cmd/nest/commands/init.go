package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"nestfs/pkg/app"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new container at the configured location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(true)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer application.Close()

		fmt.Printf("Initialized container at %s (id %s)\n",
			application.ContainerPath, application.FS.DB().ContainerID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
