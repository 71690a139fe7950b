package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nestfs/pkg/backup"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [s3 key]",
	Short: "Download a container backup from S3",
	Long: `Download a backed-up container to the configured container path.
The sha256 digest from the manifest is verified before the file is
installed; a mismatching download never touches the target path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		ctx := cmd.Context()

		containerPath := viper.GetString("container.path")
		if containerPath == "" {
			return fmt.Errorf("container path not set")
		}

		uploader, err := backup.New(ctx, backupConfig())
		if err != nil {
			return err
		}

		manifest, err := uploader.Restore(ctx, key, containerPath)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored container %s (%d bytes) to %s\n",
			manifest.ContainerID, manifest.ByteSize, containerPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
