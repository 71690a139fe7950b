// pkg/vfs/errors.go
package vfs

import "errors"

// 引擎对外的错误族。调用方统一用 errors.Is 判别，
// 具体细节通过 %w 包装链保留。
var (
	// ErrNotFound: 精确查找未命中
	ErrNotFound = errors.New("virtual path not found")

	// ErrAlreadyExists: Push 的目标路径已被占用 (索引保持不变)
	ErrAlreadyExists = errors.New("virtual path already exists")

	// ErrInvalidPath: 路径规范化后为空 (如 ""、"/"、"..")
	ErrInvalidPath = errors.New("invalid virtual path")

	// ErrCorruptedStore: 块序列有洞、大小记账不符，或容器结构无法辨认
	ErrCorruptedStore = errors.New("container is corrupted")

	// ErrStorage: 后备存储的事务/查询失败 (已回滚)
	ErrStorage = errors.New("backing store failure")

	// ErrIO: 真实文件系统的读写失败
	ErrIO = errors.New("real file I/O failure")

	// ErrNotOpen: 操作要求 open 状态的句柄，但句柄未打开或已释放
	ErrNotOpen = errors.New("file handle is not open")

	// ErrOutOfBounds: 区间读越过文件末尾
	ErrOutOfBounds = errors.New("read range out of bounds")
)
