// pkg/store/repository.go
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrDuplicatePath  = errors.New("virtual path already exists")
	ErrRecordMissing  = errors.New("file record not found")
	ErrChunkMissing   = errors.New("chunk not found")
	ErrIntegrityCheck = errors.New("chunk accounting violated")
)

// ChunkSource 抽象"按 (文件, 序号) 取一个块的载荷"。
// Repository 是基础实现；缓存层以装饰器方式包装它。
type ChunkSource interface {
	Chunk(ctx context.Context, fileID uint, seq int64) ([]byte, error)
}

// Repository 封装所有对后备存储的行级操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层适配器 (缓存层需要容器身份)
func (r *Repository) DB() *DB { return r.db }

// CreateFromReader 在单个事务里摄取一个文件：
// 先插入文件行占住路径 (唯一索引即查重)，然后按 chunkSize 逐块读入
// 并落块行，最后回填总大小和块数。任何一步失败整个事务回滚，
// 索引里不会留下半个文件。
//
// 内存峰值恒定为一个块的大小，与文件总大小无关。
func (r *Repository) CreateFromReader(
	ctx context.Context,
	path string,
	chunkSize int64,
	attrs datatypes.JSON,
	data io.Reader,
) (*FileRecord, error) {
	record := &FileRecord{
		Path:      path,
		ChunkSize: chunkSize,
		Attrs:     attrs,
	}

	err := r.db.Conn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicatePath
			}
			return fmt.Errorf("failed to create file record: %w", err)
		}

		buffer := make([]byte, chunkSize)
		var totalSize, seq int64
		for {
			n, readErr := io.ReadFull(data, buffer)
			if n > 0 {
				chunk := &ChunkRecord{
					FileID: record.ID,
					Seq:    seq,
					Size:   int64(n),
					// 注意复制：gorm 可能延迟使用切片，而 buffer 马上要被复用
					Data: append([]byte(nil), buffer[:n]...),
				}
				if err := tx.Create(chunk).Error; err != nil {
					return fmt.Errorf("failed to store chunk %d: %w", seq, err)
				}
				totalSize += int64(n)
				seq++
			}

			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				break
			}
			if readErr != nil {
				// 源读取失败：让事务回滚，已写的块一并消失
				return readErr
			}
		}

		record.Size = totalSize
		record.ChunkCount = seq
		return tx.Model(record).
			Updates(map[string]any{"size": totalSize, "chunk_count": seq}).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByPath 精确查找文件记录
func (r *Repository) GetByPath(ctx context.Context, path string) (*FileRecord, error) {
	var record FileRecord
	err := r.db.Conn().WithContext(ctx).
		Where("path = ?", path).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordMissing
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPaths 枚举候选路径。prefix 非空时利用唯一索引做前缀收窄
// (LIKE 'prefix/%' 或恰好等于 prefix)，通配判定在上层完成。
// 枚举顺序未定义。
func (r *Repository) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	query := r.db.Conn().WithContext(ctx).Model(&FileRecord{})
	if prefix != "" {
		query = query.Where("path = ? OR path LIKE ?", prefix, prefix+"/%")
	}

	var paths []string
	if err := query.Pluck("path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// Chunk 取一个块的载荷 (实现 ChunkSource)
func (r *Repository) Chunk(ctx context.Context, fileID uint, seq int64) ([]byte, error) {
	var chunk ChunkRecord
	err := r.db.Conn().WithContext(ctx).
		Where("file_id = ? AND seq = ?", fileID, seq).
		First(&chunk).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: file %d seq %d", ErrChunkMissing, fileID, seq)
	}
	if err != nil {
		return nil, err
	}
	return chunk.Data, nil
}

// chunkStats 是一次聚合查询的结果
type chunkStats struct {
	Count   int64
	MaxSeq  int64
	SizeSum int64
}

// CheckIntegrity 校验块记账不变式：
// 序号恰好覆盖 [0, chunk_count)，大小之和等于记录的总大小。
// Pull 在写出任何字节之前先跑这个检查，坏文件原子失败。
func (r *Repository) CheckIntegrity(ctx context.Context, record *FileRecord) error {
	var stats chunkStats
	err := r.db.Conn().WithContext(ctx).
		Model(&ChunkRecord{}).
		Select("COUNT(*) AS count, COALESCE(MAX(seq), -1) AS max_seq, COALESCE(SUM(size), 0) AS size_sum").
		Where("file_id = ?", record.ID).
		Scan(&stats).Error
	if err != nil {
		return err
	}

	switch {
	case stats.Count != record.ChunkCount:
		return fmt.Errorf("%w: record declares %d chunks, found %d",
			ErrIntegrityCheck, record.ChunkCount, stats.Count)
	case stats.Count > 0 && stats.MaxSeq != stats.Count-1:
		// 计数对但最大序号不对 -> 有洞或有重号
		return fmt.Errorf("%w: %d chunks but max sequence is %d",
			ErrIntegrityCheck, stats.Count, stats.MaxSeq)
	case stats.SizeSum != record.Size:
		return fmt.Errorf("%w: record declares %d bytes, chunks sum to %d",
			ErrIntegrityCheck, record.Size, stats.SizeSum)
	}
	return nil
}

// Delete 删除文件记录及其全部块 (一个事务)
func (r *Repository) Delete(ctx context.Context, path string) error {
	return r.db.Conn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record FileRecord
		err := tx.Where("path = ?", path).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordMissing
		}
		if err != nil {
			return err
		}

		if err := tx.Where("file_id = ?", record.ID).Delete(&ChunkRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&record).Error
	})
}

// isDuplicateKey 兼容不同数据库的唯一约束错误
// (SQLite 与 Postgres 的报错文本不一致，gorm 的翻译也不总是开着)
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
