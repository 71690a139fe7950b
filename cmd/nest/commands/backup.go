package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nestfs/pkg/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup [s3 key]",
	Short: "Upload the container file to S3",
	Long: `Upload the container file and a checksum manifest to the configured
S3 bucket. Only file-backed containers can be backed up this way
(:memory: and postgres locations have no single file to upload).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		ctx := cmd.Context()

		containerID := Nest.FS.DB().ContainerID()
		containerPath := Nest.ContainerPath

		// 备份必须对一个静止的容器文件做：先关掉引擎
		if err := Nest.Close(); err != nil {
			return err
		}
		Nest = nil

		uploader, err := backup.New(ctx, backupConfig())
		if err != nil {
			return err
		}

		manifest, err := uploader.Backup(ctx, containerPath, containerID, key)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backed up %s (%d bytes, sha256 %s) to s3://%s/%s\n",
			containerPath, manifest.ByteSize, manifest.SHA256[:12], viper.GetString("backup.bucket"), key)
		return nil
	},
}

func backupConfig() backup.Config {
	return backup.Config{
		Endpoint:        viper.GetString("backup.endpoint"),
		Region:          viper.GetString("backup.region"),
		Bucket:          viper.GetString("backup.bucket"),
		AccessKeyID:     viper.GetString("backup.access_key_id"),
		SecretAccessKey: viper.GetString("backup.secret_access_key"),
	}
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
