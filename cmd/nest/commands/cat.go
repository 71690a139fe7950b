package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	catOffset int64
	catLength int64
)

var catCmd = &cobra.Command{
	Use:   "cat [virtual path]",
	Short: "Write a stored file's content to stdout",
	Long: `Stream the stored content to stdout. Binary data can be redirected:
nest cat data/model.bin > model.bin
With --offset/--length only that byte range is read (chunk-aligned access,
the rest of the file is never touched).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := Nest.FS.OpenFile(ctx, args[0])
		if err != nil {
			return err
		}
		defer file.Close()

		length := catLength
		if length < 0 {
			length = file.Size() - catOffset
		}
		if length < 0 {
			return fmt.Errorf("offset %d is past the end of the file (%d bytes)", catOffset, file.Size())
		}

		if _, err := file.ReadRange(ctx, os.Stdout, catOffset, length); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

func init() {
	catCmd.Flags().Int64Var(&catOffset, "offset", 0, "start reading at this byte offset")
	catCmd.Flags().Int64Var(&catLength, "length", -1, "number of bytes to read (-1 = to end of file)")
	rootCmd.AddCommand(catCmd)
}
