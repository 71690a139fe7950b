package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nestfs/pkg/ingest"
)

var (
	pushChunkSize int64
	pushRecursive bool
	pushMeta      []string
)

var pushCmd = &cobra.Command{
	Use:   "push [real path] [virtual path]",
	Short: "Push a real file (or directory tree) into the container",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		realPath, virtualPath := args[0], args[1]
		ctx := cmd.Context()
		start := time.Now()

		if pushRecursive {
			pusher := ingest.NewTreePusher(Nest.FS, chunkSizeOrDefault())
			results, err := pusher.PushTree(ctx, realPath, virtualPath)
			if err != nil {
				return err
			}
			var totalSize int64
			for _, r := range results {
				totalSize += r.Size
				fmt.Printf("  %s (%d bytes)\n", r.VirtualPath, r.Size)
			}
			fmt.Printf("Pushed %d files, %d bytes in %v\n", len(results), totalSize, time.Since(start))
			return nil
		}

		attrs, err := parseMeta(pushMeta)
		if err != nil {
			return err
		}

		file, err := Nest.FS.Push(ctx, virtualPath, realPath, chunkSizeOrDefault(), attrs)
		if err != nil {
			return err
		}
		defer file.Close()

		fmt.Printf("Pushed %s (%d bytes, %d chunks) in %v\n",
			file.Path(), file.Size(), file.ChunkCount(), time.Since(start))
		return nil
	},
}

// chunkSizeOrDefault: flag 优先，否则用配置里的值 (0 = 引擎自选)
func chunkSizeOrDefault() int64 {
	if pushChunkSize != 0 {
		return pushChunkSize
	}
	return Nest.ChunkSize
}

// parseMeta 解析 -m key=value 形式的属性
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}

func init() {
	pushCmd.Flags().Int64Var(&pushChunkSize, "chunk-size", 0, "chunk size in bytes (0 = engine default)")
	pushCmd.Flags().BoolVarP(&pushRecursive, "recursive", "r", false, "push a directory tree (honors .nestignore)")
	pushCmd.Flags().StringArrayVarP(&pushMeta, "meta", "m", nil, "attach key=value metadata (repeatable)")
	rootCmd.AddCommand(pushCmd)
}
