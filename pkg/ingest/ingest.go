// pkg/ingest/ingest.go
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"nestfs/pkg/types"
	"nestfs/pkg/vfs"
)

// IgnoreFileName 是仓库根目录下的用户忽略规则文件
const IgnoreFileName = ".nestignore"

// 系统级默认忽略规则，强制生效
var defaultIgnoreRules = []string{
	".nest",        // 容器和配置所在目录，绝不回灌自己
	".git",         // 版本库数据
	IgnoreFileName, // 规则文件本身
	".DS_Store",    // macOS
	"Thumbs.db",    // Windows
}

// Result 记录一次成功摄取
type Result struct {
	VirtualPath string
	RealPath    string
	Size        int64
}

// TreePusher 把真实目录树整体摄取进容器。
//
// 并发模型：一个 walker goroutine 负责目录遍历和忽略判定，
// 摄取端保持单 goroutine 顺序提交 (引擎是单写者模型)，
// 管道只是让遍历和事务提交重叠，不引入并发写。
type TreePusher struct {
	fs        *vfs.FileSystem
	chunkSize int64
}

func NewTreePusher(fileSystem *vfs.FileSystem, chunkSizeHint int64) *TreePusher {
	return &TreePusher{fs: fileSystem, chunkSize: chunkSizeHint}
}

// workItem 是 walker 发给提交端的一个待摄取文件
type workItem struct {
	realPath    string
	virtualPath string
}

// PushTree 遍历 realRoot 下的全部常规文件，逐个 Push 到
// virtualPrefix 之下 (虚拟路径 = prefix + 相对路径)。
// 任何一个文件失败即中止并返回错误；已提交的文件保留
// (每个文件自身是原子的，树不是)。
func (p *TreePusher) PushTree(ctx context.Context, realRoot, virtualPrefix string) ([]Result, error) {
	matcher, err := newIgnoreMatcher(realRoot)
	if err != nil {
		return nil, err
	}

	group, ctx := errgroup.WithContext(ctx)
	work := make(chan workItem, 16)

	// 生产者：遍历 + 忽略判定
	group.Go(func() error {
		defer close(work)
		return filepath.WalkDir(realRoot, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			rel, err := filepath.Rel(realRoot, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}

			if matcher.MatchesPath(filepath.ToSlash(rel)) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil // 目录本身不摄取，路径随文件自然出现
			}
			if !d.Type().IsRegular() {
				return nil // symlink、socket 等一律跳过
			}

			virtualPath := types.NewVirtualPath(virtualPrefix + "/" + filepath.ToSlash(rel))
			select {
			case work <- workItem{realPath: path, virtualPath: virtualPath.String()}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	// 提交端：单写者顺序 Push
	var results []Result
	group.Go(func() error {
		for item := range work {
			file, err := p.fs.Push(ctx, item.virtualPath, item.realPath, p.chunkSize, nil)
			if err != nil {
				return fmt.Errorf("failed to push %s: %w", item.realPath, err)
			}
			results = append(results, Result{
				VirtualPath: item.virtualPath,
				RealPath:    item.realPath,
				Size:        file.Size(),
			})
			file.Close()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// newIgnoreMatcher 合并用户 .nestignore 与系统默认规则
func newIgnoreMatcher(root string) (*gitignore.GitIgnore, error) {
	ignoreFile := filepath.Join(root, IgnoreFileName)
	if _, err := os.Stat(ignoreFile); err == nil {
		matcher, err := gitignore.CompileIgnoreFileAndLines(ignoreFile, defaultIgnoreRules...)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", IgnoreFileName, err)
		}
		return matcher, nil
	}
	return gitignore.CompileIgnoreLines(defaultIgnoreRules...), nil
}
