// pkg/store/adapter.go
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nestfs/pkg/types"
)

var (
	// ErrNoContainer: 位置可达，但里面没有容器结构 (且调用方不允许创建)
	ErrNoContainer = errors.New("location does not contain a nest container")
	// ErrUnsupportedVersion: 容器格式版本与当前代码不兼容
	ErrUnsupportedVersion = errors.New("unsupported container format version")
	// ErrCorrupted: 容器结构存在但无法辨认 (表缺失、info 行异常等)
	ErrCorrupted = errors.New("container structure is corrupted")
)

// Options 控制容器打开行为
type Options struct {
	// CreateIfMissing: 位置上没有容器时初始化一个新容器
	CreateIfMissing bool
	// LogLevel: gorm 的 SQL 日志级别，零值表示 Warn
	LogLevel logger.LogLevel
}

// DB 封装 GORM 实例，是后备存储的唯一入口。
// 事务、行读写、扫描原语都从这里拿连接。
type DB struct {
	conn        *gorm.DB
	containerID string
	location    string
}

// Open 打开 (或创建) 一个容器。
// location 支持三种形式:
//   - types.MemoryLocation (":memory:") -> 全新的纯内存 SQLite 容器
//   - "postgres://..." / "host=..."     -> Postgres DSN
//   - 其他                               -> SQLite 文件路径 (单文件容器)
func Open(location string, opts Options) (*DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var dialector gorm.Dialector
	switch {
	case location == types.MemoryLocation:
		// 每次打开都是一个全新的内存容器。命名 + cache=shared 让
		// 本实例连接池里的连接共享同一个库，但不同实例互不可见。
		dialector = sqlite.Open(fmt.Sprintf("file:nest-%s?mode=memory&cache=shared", uuid.NewString()))
	case strings.HasPrefix(location, "postgres://") || strings.HasPrefix(location, "host="):
		dialector = postgres.Open(location)
	default:
		dialector = sqlite.Open(location)
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open container at %q: %w", location, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// 引擎是单写者模型，连接池留小即可
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	info, err := ensureSchema(conn, opts.CreateIfMissing)
	if err != nil {
		closeConn(conn)
		return nil, err
	}

	return &DB{conn: conn, containerID: info.ContainerID, location: location}, nil
}

// ensureSchema 校验容器结构，必要时在单个事务里初始化。
// 失败分类 (对应上层的错误族):
//   - 没有任何 nest 表 + 不允许创建 -> ErrNoContainer
//   - info 行的版本不等于当前版本  -> ErrUnsupportedVersion
//   - 表存在但 info 行缺失/重复     -> ErrCorrupted
func ensureSchema(conn *gorm.DB, createIfMissing bool) (*ContainerInfo, error) {
	migrator := conn.Migrator()

	if !migrator.HasTable(&ContainerInfo{}) {
		if migrator.HasTable(&FileRecord{}) || migrator.HasTable(&ChunkRecord{}) {
			// 数据表在而 info 表不在：半个容器
			return nil, fmt.Errorf("%w: data tables exist without container info", ErrCorrupted)
		}
		if !createIfMissing {
			return nil, ErrNoContainer
		}

		info := &ContainerInfo{
			Version:     CurrentFormatVersion,
			ContainerID: uuid.NewString(),
		}
		err := conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&ContainerInfo{}, &FileRecord{}, &ChunkRecord{}); err != nil {
				return fmt.Errorf("schema migration failed: %w", err)
			}
			return tx.Create(info).Error
		})
		if err != nil {
			return nil, err
		}
		return info, nil
	}

	var infos []ContainerInfo
	if err := conn.Limit(2).Find(&infos).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if len(infos) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one container info row, got %d", ErrCorrupted, len(infos))
	}
	if infos[0].Version != CurrentFormatVersion {
		return nil, fmt.Errorf("%w: container has version %d, supported version is %d",
			ErrUnsupportedVersion, infos[0].Version, CurrentFormatVersion)
	}
	if !migrator.HasTable(&FileRecord{}) || !migrator.HasTable(&ChunkRecord{}) {
		return nil, fmt.Errorf("%w: container info present but data tables missing", ErrCorrupted)
	}

	return &infos[0], nil
}

// ContainerID 返回容器的稳定身份 (UUID 字符串)
func (d *DB) ContainerID() string { return d.containerID }

// Location 返回打开容器时使用的位置串
func (d *DB) Location() string { return d.location }

// Conn 暴露底层 GORM 连接 (仓库层使用)
func (d *DB) Conn() *gorm.DB { return d.conn }

// Close 释放后备容器。调用方必须先关闭所有派生的文件句柄。
func (d *DB) Close() error {
	return closeConn(d.conn)
}

func closeConn(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
