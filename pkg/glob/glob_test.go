package glob

import (
	"testing"

	"nestfs/pkg/types"

	"github.com/stretchr/testify/assert"
)

func match(pattern, path string) bool {
	return Compile(pattern).Match(types.NewVirtualPath(path))
}

func TestCompile_Literal(t *testing.T) {
	p := Compile("folder/file.txt")
	assert.True(t, p.IsLiteral())
	assert.Equal(t, "folder/file.txt", p.LiteralPrefix())

	q := Compile("folder/*.txt")
	assert.False(t, q.IsLiteral())
	assert.Equal(t, "folder", q.LiteralPrefix())

	r := Compile("*/file")
	assert.Equal(t, "", r.LiteralPrefix())
}

func TestMatch_Exact(t *testing.T) {
	assert.True(t, match("folder/file", "folder/file"))
	assert.False(t, match("folder/file", "folder/other"))
	// 大小写敏感
	assert.False(t, match("Folder/file", "folder/file"))
	// 模式自身也走规范化
	assert.True(t, match("/folder//file/", "folder/file"))
}

func TestMatch_Star(t *testing.T) {
	assert.True(t, match("folder*/file", "folder1/file"))
	assert.True(t, match("folder*/file", "folder2/file"))
	assert.True(t, match("folder*/file", "folder/file")) // '*' 可以匹配空串
	// 通配符不跨段
	assert.False(t, match("folder*/file", "folder1/sub/file"))
	assert.False(t, match("*", "folder/file"))
	assert.True(t, match("*", "file"))
	assert.True(t, match("folder/*/*", "folder/sub/file"))
	assert.True(t, match("folder/example_*.txt", "folder/example_file_1.txt"))
	assert.False(t, match("folder/example_*.txt", "folder/example_file_1.bin"))
	// 多个星号
	assert.True(t, match("*a*b*", "xxaxxbxx"))
	assert.False(t, match("*a*b*", "xxbxxa"))
}

func TestMatch_QuestionMark(t *testing.T) {
	assert.True(t, match("folder/example_file_?.txt", "folder/example_file_1.txt"))
	assert.True(t, match("folder/example_file_?.txt", "folder/example_file_2.txt"))
	assert.False(t, match("folder/example_file_?.txt", "folder/example_file_10.txt"))
	assert.False(t, match("?", ""))
}

func TestMatch_Empty(t *testing.T) {
	// 空模式什么都不命中 (包括空路径)
	assert.False(t, Compile("").Match(types.NewVirtualPath("")))
	assert.False(t, Compile("/").Match(types.NewVirtualPath("file")))
}

func TestMatch_SegmentCount(t *testing.T) {
	assert.False(t, match("folder", "folder/file"))
	assert.False(t, match("folder/file", "folder"))
	assert.False(t, match("*/*", "a/b/c"))
}
