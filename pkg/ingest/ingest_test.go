package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestfs/pkg/types"
	"nestfs/pkg/vfs"
)

// buildTree 按 path -> content 铺一棵真实目录树
func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return root
}

func newMemoryFS(t *testing.T) *vfs.FileSystem {
	t.Helper()
	fs, err := vfs.Open(types.MemoryLocation, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	return fs
}

func storedPaths(results []Result) []string {
	paths := make([]string, 0, len(results))
	for _, r := range results {
		paths = append(paths, r.VirtualPath)
	}
	sort.Strings(paths)
	return paths
}

func TestPushTree(t *testing.T) {
	root := buildTree(t, map[string]string{
		"readme.md":         "hello",
		"data/train.csv":    "a,b,c",
		"data/sub/eval.csv": "d,e,f",
	})
	fs := newMemoryFS(t)

	results, err := NewTreePusher(fs, 0).PushTree(context.Background(), root, "project")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"project/data/sub/eval.csv",
		"project/data/train.csv",
		"project/readme.md",
	}, storedPaths(results))

	// 内容随路径一并进入容器
	file, err := fs.OpenFile(context.Background(), "project/data/train.csv")
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, int64(5), file.Size())
}

func TestPushTree_DefaultIgnores(t *testing.T) {
	root := buildTree(t, map[string]string{
		"keep.txt":           "x",
		".git/HEAD":          "ref",
		".nest/container.db": "binary",
		".DS_Store":          "junk",
		"sub/Thumbs.db":      "junk",
	})
	fs := newMemoryFS(t)

	results, err := NewTreePusher(fs, 0).PushTree(context.Background(), root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, storedPaths(results))
}

func TestPushTree_IgnoreFile(t *testing.T) {
	root := buildTree(t, map[string]string{
		IgnoreFileName:   "*.log\nscratch/\n",
		"app.go":         "package app",
		"debug.log":      "noise",
		"scratch/wip.go": "temp",
	})
	fs := newMemoryFS(t)

	results, err := NewTreePusher(fs, 0).PushTree(context.Background(), root, "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.go"}, storedPaths(results))
}

func TestPushTree_EmptyPrefix(t *testing.T) {
	root := buildTree(t, map[string]string{"only.txt": "x"})
	fs := newMemoryFS(t)

	results, err := NewTreePusher(fs, 0).PushTree(context.Background(), root, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "only.txt", results[0].VirtualPath)
}

func TestPushTree_ConflictAborts(t *testing.T) {
	root := buildTree(t, map[string]string{"clash.txt": "new"})
	fs := newMemoryFS(t)
	ctx := context.Background()

	occupied, err := fs.PushReader(ctx, "tree/clash.txt", bytes.NewReader([]byte("old")), 0, nil)
	require.NoError(t, err)
	occupied.Close()

	_, err = NewTreePusher(fs, 0).PushTree(ctx, root, "tree")
	assert.ErrorIs(t, err, vfs.ErrAlreadyExists)
}

func TestPushTree_MissingRoot(t *testing.T) {
	fs := newMemoryFS(t)
	_, err := NewTreePusher(fs, 0).PushTree(context.Background(), filepath.Join(t.TempDir(), "gone"), "x")
	assert.Error(t, err)
}
