// pkg/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nestfs/pkg/store"
)

// ChunkCache 是一个装饰器：为底层的 store.ChunkSource 加一层
// redis 读穿缓存。Pull 和区间读按 (文件, 序号) 逐块取数据，
// 热文件的块直接从 redis 命中，冷块回源后写入缓存。
//
// 降级策略：redis 出错时退化为无缓存直读，绝不让缓存故障
// 放大成存储故障。
type ChunkCache struct {
	source store.ChunkSource
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config 缓存配置
type Config struct {
	RedisURL string        // 标准连接串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 块在缓存里的存活时间
}

// New 创建缓存层。containerID 进 key 前缀：不同容器的
// file_id 会撞号，身份必须隔离。
func New(source store.ChunkSource, containerID string, cfg Config) (*ChunkCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ChunkCache{
		source: source,
		client: client,
		prefix: "nest:" + containerID,
		ttl:    cfg.TTL,
	}, nil
}

func (c *ChunkCache) key(fileID uint, seq int64) string {
	return fmt.Sprintf("%s:%d:%d", c.prefix, fileID, seq)
}

// Chunk 实现 store.ChunkSource：先查缓存，未命中回源并写回
func (c *ChunkCache) Chunk(ctx context.Context, fileID uint, seq int64) ([]byte, error) {
	key := c.key(fileID, seq)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return payload, nil
	}
	// redis.Nil 是正常未命中；其他错误走降级直读

	payload, err = c.source.Chunk(ctx, fileID, seq)
	if err != nil {
		return nil, err
	}

	// 写回失败只影响下次命中率，不影响本次结果
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()

	return payload, nil
}

// Invalidate 清掉一个文件的全部缓存块 (删除文件后调用)
func (c *ChunkCache) Invalidate(ctx context.Context, fileID uint, chunkCount int64) {
	keys := make([]string, 0, chunkCount)
	for seq := int64(0); seq < chunkCount; seq++ {
		keys = append(keys, c.key(fileID, seq))
	}
	if len(keys) > 0 {
		_ = c.client.Del(ctx, keys...).Err()
	}
}

// Close 释放 redis 连接
func (c *ChunkCache) Close() error {
	return c.client.Close()
}
