package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat [virtual path]",
	Short: "Show size and metadata of a stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := Nest.FS.OpenFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		fmt.Printf("Path:   %s\n", file.Path())
		fmt.Printf("Size:   %d bytes\n", file.Size())
		fmt.Printf("Chunks: %d\n", file.ChunkCount())

		if attrs := file.Attrs(); len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for key := range attrs {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			fmt.Println("Meta:")
			for _, key := range keys {
				fmt.Printf("  %s = %s\n", key, attrs[key])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}
