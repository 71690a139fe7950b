// pkg/app/app.go
package app

import (
	"fmt"

	"github.com/spf13/viper"

	"nestfs/pkg/cache"
	"nestfs/pkg/store"
	"nestfs/pkg/vfs"
)

// App 是整个应用程序的依赖容器，持有所有"单例"服务
type App struct {
	FS            *vfs.FileSystem
	Cache         *cache.ChunkCache // 可能为 nil (未配置 redis)
	ContainerPath string
	ChunkSize     int64
}

// NewApp 按 Viper 配置组装引擎。
// createIfMissing=false 时，位置上没有容器会直接报错
// (init 命令传 true，其余命令传 false)。
func NewApp(createIfMissing bool) (*App, error) {
	containerPath := viper.GetString("container.path")
	if containerPath == "" {
		return nil, fmt.Errorf("container path not set")
	}

	db, err := store.Open(containerPath, store.Options{CreateIfMissing: createIfMissing})
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	var opts []vfs.Option
	var chunkCache *cache.ChunkCache

	// 可选的 redis 块缓存
	if redisURL := viper.GetString("cache.redis_url"); redisURL != "" {
		chunkCache, err = cache.New(store.NewRepository(db), db.ContainerID(), cache.Config{
			RedisURL: redisURL,
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to init chunk cache: %w", err)
		}
		opts = append(opts, vfs.WithChunkSource(chunkCache))
	}

	return &App{
		FS:            vfs.New(db, opts...),
		Cache:         chunkCache,
		ContainerPath: containerPath,
		ChunkSize:     viper.GetInt64("container.chunk_size"),
	}, nil
}

// Close 释放全部资源 (缓存先关，容器后关)
func (a *App) Close() error {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	return a.FS.Close()
}
