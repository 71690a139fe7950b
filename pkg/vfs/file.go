// pkg/vfs/file.go
package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"nestfs/pkg/store"
	"nestfs/pkg/types"
)

type handleState int

const (
	// unopened: 路径已知 (来自 Find)，尚未对索引验证
	stateUnopened handleState = iota
	// open: 已验证，元数据就绪，可以查询和拉取
	stateOpen
	// closed: 已释放，不得复用
	stateClosed
)

// File 是进程内的文件句柄：一条 FileRecord 的会话引用，
// 外加指回所属 FileSystem 的非拥有引用 (FileSystem 必须比它活得久)。
//
// 状态机: unopened --Open--> open --Close--> closed
// Push/OpenFile 产出的句柄直接处于 open；Find 产出 unopened。
type File struct {
	fs     *FileSystem
	path   types.VirtualPath
	state  handleState
	record *store.FileRecord

	// cursor 供 io.Reader 使用，ReadRange 不动它
	cursor int64
}

// Path 返回句柄指向的虚拟路径 (任何状态下都可用)
func (f *File) Path() string { return f.path.String() }

// IsOpen 报告句柄是否处于 open 状态
func (f *File) IsOpen() bool { return f.state == stateOpen }

// Open 把 unopened 句柄对索引验证并装载元数据。
// 已经 open 的句柄调用是无害的空操作；已释放的句柄返回 ErrNotOpen。
func (f *File) Open(ctx context.Context) error {
	switch f.state {
	case stateOpen:
		return nil
	case stateClosed:
		return fmt.Errorf("%w: handle already released", ErrNotOpen)
	}

	record, err := f.fs.repo.GetByPath(ctx, f.path.String())
	if err != nil {
		if errors.Is(err, store.ErrRecordMissing) {
			return fmt.Errorf("%w: %s", ErrNotFound, f.path)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	f.record = record
	f.state = stateOpen
	return nil
}

// Close 释放句柄。幂等：重复释放是空操作，不是错误。
func (f *File) Close() {
	f.state = stateClosed
	f.record = nil
}

// Size 返回文件总字节数。
//
// 这个调用沿用观察到的契约：没有独立的错误通道，句柄不处于
// open 状态时返回 -1 哨兵，调用方无法从返回值细分错误种类。
// (引擎内其他操作都走真正的 error 返回。)
func (f *File) Size() int64 {
	if f.state != stateOpen {
		return -1
	}
	return f.record.Size
}

// ChunkCount 返回块数，非 open 状态返回 -1
func (f *File) ChunkCount() int64 {
	if f.state != stateOpen {
		return -1
	}
	return f.record.ChunkCount
}

// Attrs 返回 Push 时附加的属性，没有属性或非 open 状态返回 nil
func (f *File) Attrs() map[string]string {
	if f.state != stateOpen || len(f.record.Attrs) == 0 {
		return nil
	}
	var attrs map[string]string
	if err := json.Unmarshal(f.record.Attrs, &attrs); err != nil {
		return nil
	}
	return attrs
}

// Pull 把文件按序重建到真实路径 dest。
//
// 流式纪律：任何时刻内存里最多只有一个块。
// 先做完整性预检 (序号连续、大小记账)，坏文件在写出任何
// 字节之前就失败；中途失败则丢弃临时文件，绝不留下一个
// 看起来完整实则截断的输出。成功时用临时文件 + rename 落盘。
func (f *File) Pull(ctx context.Context, dest string) error {
	if f.state != stateOpen {
		return ErrNotOpen
	}

	if err := f.fs.repo.CheckIntegrity(ctx, f.record); err != nil {
		if errors.Is(err, store.ErrIntegrityCheck) {
			return fmt.Errorf("%w: %w", ErrCorruptedStore, err)
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	dir := filepath.Dir(dest)
	output, err := os.CreateTemp(dir, ".nest-pull-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	tempName := output.Name()
	// 失败路径统一清理；成功 rename 之后这个删除自然落空
	defer os.Remove(tempName)

	if err := f.streamChunks(ctx, output); err != nil {
		output.Close()
		return err
	}

	if err := output.Sync(); err != nil {
		output.Close()
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := output.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err := os.Rename(tempName, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// streamChunks 按升序逐块写入 sink
func (f *File) streamChunks(ctx context.Context, sink io.Writer) error {
	var written int64
	for seq := int64(0); seq < f.record.ChunkCount; seq++ {
		payload, err := f.fs.chunks.Chunk(ctx, f.record.ID, seq)
		if err != nil {
			if errors.Is(err, store.ErrChunkMissing) {
				return fmt.Errorf("%w: %w", ErrCorruptedStore, err)
			}
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		if _, err := sink.Write(payload); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		written += int64(len(payload))
	}

	if written != f.record.Size {
		return fmt.Errorf("%w: streamed %d bytes, record declares %d",
			ErrCorruptedStore, written, f.record.Size)
	}
	return nil
}

// ReadRange 把 [off, off+length) 的内容写入 sink，返回写出的字节数。
// 长度为 0 的读取永远成功 (哪怕 off 越界)；越过文件末尾的区间
// 返回 ErrOutOfBounds，不写出任何字节。
// 不影响 io.Reader 的游标。
func (f *File) ReadRange(ctx context.Context, sink io.Writer, off, length int64) (int64, error) {
	if f.state != stateOpen {
		return 0, ErrNotOpen
	}
	if length == 0 {
		return 0, nil
	}
	if off < 0 || length < 0 || off+length > f.record.Size {
		return 0, fmt.Errorf("%w: [%d, %d) of %d bytes", ErrOutOfBounds, off, off+length, f.record.Size)
	}

	chunkSize := f.record.ChunkSize
	firstSeq := off / chunkSize
	lastSeq := (off + length - 1) / chunkSize

	var written int64
	for seq := firstSeq; seq <= lastSeq; seq++ {
		payload, err := f.fs.chunks.Chunk(ctx, f.record.ID, seq)
		if err != nil {
			if errors.Is(err, store.ErrChunkMissing) {
				return written, fmt.Errorf("%w: %w", ErrCorruptedStore, err)
			}
			return written, fmt.Errorf("%w: %w", ErrStorage, err)
		}

		start := int64(0)
		if seq == firstSeq {
			start = off - seq*chunkSize
		}
		if start > int64(len(payload)) {
			return written, fmt.Errorf("%w: chunk %d shorter than expected", ErrCorruptedStore, seq)
		}

		n := min(int64(len(payload))-start, length-written)
		if _, err := sink.Write(payload[start : start+n]); err != nil {
			return written, fmt.Errorf("%w: %w", ErrIO, err)
		}
		written += n
	}

	if written != length {
		return written, fmt.Errorf("%w: chunk accounting ended short", ErrCorruptedStore)
	}
	return written, nil
}

// Read 实现 io.Reader：从内部游标顺序读取。
// EOF 处读取安全地返回 (0, io.EOF)。
func (f *File) Read(p []byte) (int, error) {
	if f.state != stateOpen {
		return 0, ErrNotOpen
	}
	remaining := f.record.Size - f.cursor
	if remaining <= 0 {
		return 0, io.EOF
	}

	length := min(int64(len(p)), remaining)
	if length == 0 {
		return 0, nil
	}

	sink := sliceWriter{buf: p[:0]}
	written, err := f.ReadRange(context.Background(), &sink, f.cursor, length)
	f.cursor += written
	return int(written), err
}

// sliceWriter 把写入落到一个预分配好的切片上
type sliceWriter struct{ buf []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
