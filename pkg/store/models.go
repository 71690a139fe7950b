// pkg/store/models.go
package store

import (
	"time"

	"gorm.io/datatypes"
)

// 容器格式版本。版本不一致的容器拒绝打开，
// 避免新代码默默读坏旧布局 (或反过来)。
const CurrentFormatVersion = 1

// ContainerInfo 是容器级元数据，整个容器只有一行。
// ContainerID 在创建时生成，之后永不改变:
// 缓存层用它做 key 前缀，备份层用它核对身份。
type ContainerInfo struct {
	ID          uint   `gorm:"primaryKey"`
	Version     int    `gorm:"not null"`
	ContainerID string `gorm:"type:char(36);not null"`
	CreatedAt   time.Time
}

func (ContainerInfo) TableName() string { return "nest_info" }

// FileRecord 是一个虚拟文件的持久化记录。
// 不变式: Size == 所有块的 Size 之和；块序号连续覆盖 [0, ChunkCount)。
// 记录创建后不可变 (没有 append/update)，只能整体删除。
type FileRecord struct {
	ID uint `gorm:"primaryKey"`

	// Path 是规范化后的虚拟路径，全容器唯一
	Path string `gorm:"uniqueIndex;type:varchar(4096);not null"`

	Size       int64 `gorm:"not null"`
	ChunkCount int64 `gorm:"not null"`

	// ChunkSize 是切分时的目标块大小 (最后一块可以更短)
	ChunkSize int64 `gorm:"not null"`

	// Attrs 是调用方附加的任意字符串属性 (如来源、标签)
	Attrs datatypes.JSON

	// 块由文件独占；级联删除由仓库层在事务里显式执行，
	// 不依赖 SQLite 的 foreign_keys PRAGMA 是否开启
	Chunks []ChunkRecord `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
}

func (FileRecord) TableName() string { return "nest_files" }

// ChunkRecord 是文件的一个有序字节块。
// 块被其 FileRecord 独占，记录删除时级联删除。
type ChunkRecord struct {
	ID     uint `gorm:"primaryKey"`
	FileID uint `gorm:"not null;uniqueIndex:idx_file_seq"`

	// Seq 是块在文件内的序号，0 起始连续无洞
	Seq int64 `gorm:"not null;uniqueIndex:idx_file_seq"`

	Size int64  `gorm:"not null"`
	Data []byte `gorm:"not null"`
}

func (ChunkRecord) TableName() string { return "nest_chunks" }
