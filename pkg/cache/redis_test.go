package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 集成测试：需要一个可达的 redis，默认 localhost:6379，
// 可用 NEST_TEST_REDIS_URL 覆盖。不可达时跳过。
func testRedisURL() string {
	if url := os.Getenv("NEST_TEST_REDIS_URL"); url != "" {
		return url
	}
	return "redis://localhost:6379/15"
}

// spySource 记录回源次数的 ChunkSource 假体
type spySource struct {
	chunks map[string][]byte
	hits   int
}

func (s *spySource) Chunk(_ context.Context, fileID uint, seq int64) ([]byte, error) {
	s.hits++
	payload, ok := s.chunks[fmt.Sprintf("%d:%d", fileID, seq)]
	if !ok {
		return nil, fmt.Errorf("unknown chunk %d/%d", fileID, seq)
	}
	return payload, nil
}

func newTestCache(t *testing.T, source *spySource) *ChunkCache {
	t.Helper()
	cache, err := New(source, uuid.NewString(), Config{
		RedisURL: testRedisURL(),
		TTL:      time.Minute,
	})
	if err != nil {
		t.Skipf("redis is not available: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestChunkCache_ReadThrough(t *testing.T) {
	source := &spySource{chunks: map[string][]byte{
		"1:0": []byte("first chunk"),
		"1:1": []byte("second chunk"),
	}}
	cache := newTestCache(t, source)
	ctx := context.Background()

	// 首次读取回源
	payload, err := cache.Chunk(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first chunk"), payload)
	assert.Equal(t, 1, source.hits)

	// 第二次读取命中缓存，不再回源
	payload, err = cache.Chunk(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("first chunk"), payload)
	assert.Equal(t, 1, source.hits)

	// 不同序号是独立的缓存项
	_, err = cache.Chunk(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, source.hits)
}

func TestChunkCache_SourceError(t *testing.T) {
	source := &spySource{chunks: map[string][]byte{}}
	cache := newTestCache(t, source)

	_, err := cache.Chunk(context.Background(), 9, 0)
	assert.Error(t, err)
}

func TestChunkCache_Invalidate(t *testing.T) {
	source := &spySource{chunks: map[string][]byte{
		"2:0": []byte("a"),
		"2:1": []byte("b"),
	}}
	cache := newTestCache(t, source)
	ctx := context.Background()

	for seq := int64(0); seq < 2; seq++ {
		_, err := cache.Chunk(ctx, 2, seq)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, source.hits)

	cache.Invalidate(ctx, 2, 2)

	// 失效之后重新回源
	_, err := cache.Chunk(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, source.hits)
}

func TestChunkCache_ContainerIsolation(t *testing.T) {
	source := &spySource{chunks: map[string][]byte{"1:0": []byte("mine")}}
	first := newTestCache(t, source)
	ctx := context.Background()

	_, err := first.Chunk(ctx, 1, 0)
	require.NoError(t, err)

	// 另一个容器身份看不到前者的缓存项
	other := &spySource{chunks: map[string][]byte{"1:0": []byte("theirs")}}
	second := newTestCache(t, other)

	payload, err := second.Chunk(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("theirs"), payload)
	assert.Equal(t, 1, other.hits, "second cache must not hit the first cache's keys")
}

func TestChunkCache_BadURL(t *testing.T) {
	_, err := New(&spySource{}, "x", Config{RedisURL: "not-a-url"})
	assert.Error(t, err)
}
