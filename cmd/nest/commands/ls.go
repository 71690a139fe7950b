package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var lsLong bool

var lsCmd = &cobra.Command{
	Use:   "ls [pattern]",
	Short: "List stored paths matching a glob pattern",
	Long: `List stored virtual paths. The pattern is itself path-shaped:
'*' matches any run of characters within one segment, '?' exactly one.
Wildcards never cross '/' boundaries, so 'folder*/file' matches
'folder1/file' but not 'folder1/sub/file'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := "*"
		if len(args) == 1 {
			pattern = args[0]
		}
		ctx := cmd.Context()

		files, err := Nest.FS.Find(ctx, pattern)
		if err != nil {
			return err
		}

		// Find 的枚举顺序未定义，输出前排一下
		sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })

		if !lsLong {
			for _, file := range files {
				fmt.Println(file.Path())
			}
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		for _, file := range files {
			// 长格式需要元数据，逐个 Open
			if err := file.Open(ctx); err != nil {
				return err
			}
			fmt.Fprintf(tw, "%d\t%d\t%s\n", file.Size(), file.ChunkCount(), file.Path())
			file.Close()
		}
		return tw.Flush()
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show size and chunk count")
	rootCmd.AddCommand(lsCmd)
}
