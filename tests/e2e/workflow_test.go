// 端到端验证：一个文件容器上的完整生命周期，
// 跨越关闭/重开，验证持久化与字节一致性。
package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestfs/pkg/ingest"
	"nestfs/pkg/vfs"
)

func TestWorkflow_PersistAcrossReopen(t *testing.T) {
	container := filepath.Join(t.TempDir(), "container.db")
	ctx := context.Background()

	// 有点体量、跨多块的内容
	content := make([]byte, 300_000)
	_, err := rand.New(rand.NewSource(42)).Read(content)
	require.NoError(t, err)
	wantDigest := sha256.Sum256(content)

	// 第一次会话：建容器、摄取、关闭
	fs, err := vfs.Open(container, true)
	require.NoError(t, err)

	file, err := fs.PushReader(ctx, "data/blob.bin", bytes.NewReader(content), 64*1024, map[string]string{"origin": "e2e"})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), file.Size())
	assert.Equal(t, int64(5), file.ChunkCount())
	file.Close()
	require.NoError(t, fs.Close())

	// 第二次会话：不允许创建也能打开，内容逐字节还原
	fs, err = vfs.Open(container, false)
	require.NoError(t, err)
	defer fs.Close()

	file, err = fs.OpenFile(ctx, "data/blob.bin")
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, int64(len(content)), file.Size())
	assert.Equal(t, map[string]string{"origin": "e2e"}, file.Attrs())

	dest := filepath.Join(t.TempDir(), "restored.bin")
	require.NoError(t, file.Pull(ctx, dest))
	restored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, wantDigest, sha256.Sum256(restored))
}

func TestWorkflow_TreeIngestThenQuery(t *testing.T) {
	container := filepath.Join(t.TempDir(), "container.db")
	ctx := context.Background()

	// 真实目录树
	root := t.TempDir()
	layout := map[string]string{
		"README.md":       "docs",
		"cfg/app.yaml":    "config: true",
		"cfg/db.yaml":     "dsn: somewhere",
		"assets/logo.png": "not really a png",
		".nestignore":     "*.png\n",
	}
	for rel, body := range layout {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0644))
	}

	fs, err := vfs.Open(container, true)
	require.NoError(t, err)
	defer fs.Close()

	results, err := ingest.NewTreePusher(fs, 0).PushTree(ctx, root, "repo")
	require.NoError(t, err)
	assert.Len(t, results, 3, "png and the ignore file itself are excluded")

	// 通配查询，验证段边界语义
	find := func(pattern string) []string {
		files, err := fs.Find(ctx, pattern)
		require.NoError(t, err)
		var paths []string
		for _, f := range files {
			paths = append(paths, f.Path())
		}
		sort.Strings(paths)
		return paths
	}

	assert.Equal(t, []string{"repo/cfg/app.yaml", "repo/cfg/db.yaml"}, find("repo/cfg/*"))
	assert.Equal(t, []string{"repo/README.md"}, find("repo/*"))
	assert.Empty(t, find("repo/*/logo.png"))

	// 删除一个再查
	require.NoError(t, fs.Delete(ctx, "repo/cfg/db.yaml"))
	assert.Equal(t, []string{"repo/cfg/app.yaml"}, find("repo/cfg/*"))

	// 区间读取不拉全文件
	file, err := fs.OpenFile(ctx, "repo/cfg/app.yaml")
	require.NoError(t, err)
	defer file.Close()
	var buf bytes.Buffer
	_, err = file.ReadRange(ctx, &buf, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, "config", buf.String())
}
