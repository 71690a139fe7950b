// pkg/vfs/filesystem.go
package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gorm.io/datatypes"

	"nestfs/pkg/glob"
	"nestfs/pkg/store"
	"nestfs/pkg/types"
)

const (
	// DefaultChunkSize: 引擎自选的块大小。
	// 32 MiB 在"块行数可控"和"峰值内存只占一个块"之间取平衡。
	DefaultChunkSize int64 = 32 * 1024 * 1024

	// MaxChunkSize: 后端单个 BLOB 的上限 (SQLite 默认 1e9 字节)。
	// 超过上限的 hint 回落到默认值，与接受任何正值的行为保持一致。
	MaxChunkSize int64 = 1_000_000_000
)

// FileSystem 是虚拟文件存储引擎的根对象。
// 负责容器生命周期，并派生文件句柄 (File)。
//
// 并发契约：引擎本身是单写者模型，同一个 FileSystem 上的并发
// Push/Delete 需要调用方自行串行化；只读操作依赖后备存储的
// 默认读一致性。Close 之前必须先关闭所有派生的 File。
type FileSystem struct {
	db     *store.DB
	repo   *store.Repository
	chunks store.ChunkSource
}

// Option 定制 FileSystem 的装配
type Option func(*FileSystem)

// WithChunkSource 替换块读取源 (典型用法：套一层 redis 读穿缓存)
func WithChunkSource(source store.ChunkSource) Option {
	return func(fs *FileSystem) { fs.chunks = source }
}

// New 在一个已打开的容器上装配引擎
func New(db *store.DB, opts ...Option) *FileSystem {
	repo := store.NewRepository(db)
	fs := &FileSystem{db: db, repo: repo, chunks: repo}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Open 一步到位：打开 (或创建) 容器并装配引擎。
// location 语义见 store.Open；错误族:
//   - 位置不可达/不可写 -> ErrIO
//   - 结构无法辨认       -> ErrCorruptedStore
func Open(location string, createIfMissing bool, opts ...Option) (*FileSystem, error) {
	db, err := store.Open(location, store.Options{CreateIfMissing: createIfMissing})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCorrupted), errors.Is(err, store.ErrUnsupportedVersion):
			return nil, fmt.Errorf("%w: %w", ErrCorruptedStore, err)
		case errors.Is(err, store.ErrNoContainer):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return New(db, opts...), nil
}

// DB 暴露底层容器 (app 装配和白盒测试使用)
func (fs *FileSystem) DB() *store.DB { return fs.db }

// Close 释放后备容器。
// 契约：所有派生的 File 必须已经 Close，这一点由调用方保证。
func (fs *FileSystem) Close() error {
	return fs.db.Close()
}

// Push 把真实文件摄取进容器，成功后返回已打开的句柄。
// chunkSizeHint <= 0 表示引擎自选。失败时索引无任何痕迹。
func (fs *FileSystem) Push(ctx context.Context, virtualPath, realPath string, chunkSizeHint int64, attrs map[string]string) (*File, error) {
	source, err := os.Open(realPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer source.Close()

	return fs.PushReader(ctx, virtualPath, source, chunkSizeHint, attrs)
}

// PushReader 是 Push 的流式形式：数据来自任意 Reader。
// 整个摄取在一个事务里完成，任何失败都回滚，观察者永远
// 看不到半个文件。
func (fs *FileSystem) PushReader(ctx context.Context, virtualPath string, data io.Reader, chunkSizeHint int64, attrs map[string]string) (*File, error) {
	path := types.NewVirtualPath(virtualPath)
	if path.IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, virtualPath)
	}

	attrsJSON, err := encodeAttrs(attrs)
	if err != nil {
		return nil, err
	}

	record, err := fs.repo.CreateFromReader(ctx, path.String(), effectiveChunkSize(chunkSizeHint), attrsJSON, data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicatePath):
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		case isRealIO(err):
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
	}

	return &File{fs: fs, path: path, state: stateOpen, record: record}, nil
}

// OpenFile 精确查找并返回 open 状态的句柄。
// 只读元数据 (大小、块数)，块载荷等到 Pull/读取时才动。
func (fs *FileSystem) OpenFile(ctx context.Context, virtualPath string) (*File, error) {
	path := types.NewVirtualPath(virtualPath)
	if path.IsZero() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, virtualPath)
	}

	record, err := fs.repo.GetByPath(ctx, path.String())
	if err != nil {
		if errors.Is(err, store.ErrRecordMissing) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &File{fs: fs, path: path, state: stateOpen, record: record}, nil
}

// Find 按通配模式枚举已存文件，返回 unopened 句柄 (只带路径)。
// 通配符语义见 pkg/glob：'*' 与 '?' 都不跨越段边界。
// 返回顺序未定义；想要确定性输出自己排序。
func (fs *FileSystem) Find(ctx context.Context, pattern string) ([]*File, error) {
	compiled := glob.Compile(pattern)
	if compiled.Path().IsZero() {
		return nil, nil
	}

	candidates, err := fs.repo.ListPaths(ctx, compiled.LiteralPrefix())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var matches []*File
	for _, candidate := range candidates {
		path := types.VirtualPath(candidate)
		if compiled.Match(path) {
			matches = append(matches, &File{fs: fs, path: path, state: stateUnopened})
		}
	}
	return matches, nil
}

// Delete 删除一个虚拟文件及其全部块
func (fs *FileSystem) Delete(ctx context.Context, virtualPath string) error {
	path := types.NewVirtualPath(virtualPath)
	if path.IsZero() {
		return fmt.Errorf("%w: %q", ErrInvalidPath, virtualPath)
	}

	err := fs.repo.Delete(ctx, path.String())
	if err != nil {
		if errors.Is(err, store.ErrRecordMissing) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// effectiveChunkSize 把调用方的 hint 换算成实际块大小。
// 非正值是"引擎自选"哨兵；超过后端 BLOB 上限的值同样回落默认。
func effectiveChunkSize(hint int64) int64 {
	if hint > 0 && hint <= MaxChunkSize {
		return hint
	}
	return DefaultChunkSize
}

func encodeAttrs(attrs map[string]string) (datatypes.JSON, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// isRealIO 区分"源读取失败"和"数据库失败"：
// CreateFromReader 把源 Reader 的错误原样透传上来
func isRealIO(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}
