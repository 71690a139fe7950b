// pkg/glob/glob.go
//
// 容器内路径的通配匹配。
// 语义和真实文件系统的 glob 不同：通配符永远不跨越 "/" 段边界，
// "folder*/file" 能匹配 "folder1/file"，但匹配不到 "folder1/sub/file"。
package glob

import (
	"strings"

	"nestfs/pkg/types"
)

// Pattern 是编译后的匹配器。
// 每个段编译成一个独立的段匹配器：
//   - 不含通配符的段 -> 字面量相等
//   - 含 "*" (任意长度，不含 "/") 或 "?" (恰好一个字符) 的段 -> 段内通配
type Pattern struct {
	raw      types.VirtualPath
	segments []segmentMatcher
	literal  bool // 所有段都是字面量 -> 退化为精确查询
}

type segmentMatcher struct {
	pattern string
	literal bool
}

// Compile 将模式路径编译为 Pattern。
// 模式本身也会先经过路径规范化，所以 "/folder*//file" 和 "folder*/file" 等价。
func Compile(raw string) Pattern {
	path := types.NewVirtualPath(raw)
	segments := path.Segments()

	compiled := make([]segmentMatcher, 0, len(segments))
	literal := true
	for _, segment := range segments {
		m := segmentMatcher{
			pattern: segment,
			literal: !strings.ContainsAny(segment, "*?"),
		}
		if !m.literal {
			literal = false
		}
		compiled = append(compiled, m)
	}

	return Pattern{raw: path, segments: compiled, literal: literal}
}

// IsLiteral 报告模式是否不含任何通配符 (此时 Match 等价于路径相等)
func (p Pattern) IsLiteral() bool { return p.literal }

// Path 返回规范化后的模式路径
func (p Pattern) Path() types.VirtualPath { return p.raw }

// LiteralPrefix 返回模式开头连续的字面量段 (规范化连接形式)。
// 用于在存储层把候选集缩小为一个前缀范围，空串表示没有可用前缀。
func (p Pattern) LiteralPrefix() string {
	var parts []string
	for _, m := range p.segments {
		if !m.literal {
			break
		}
		parts = append(parts, m.pattern)
	}
	return strings.Join(parts, "/")
}

// Match 判断一个已规范化的路径是否命中模式。
// 段数必须一致：通配符不产生也不吞掉段。
func (p Pattern) Match(path types.VirtualPath) bool {
	segments := path.Segments()
	if len(segments) != len(p.segments) {
		return false
	}
	for i, m := range p.segments {
		if !m.match(segments[i]) {
			return false
		}
	}
	return len(p.segments) > 0
}

func (m segmentMatcher) match(segment string) bool {
	if m.literal {
		return m.pattern == segment
	}
	return matchSegment(m.pattern, segment)
}

// matchSegment 实现段内通配：
//   - '?' 匹配恰好一个字符
//   - '*' 匹配任意长度 (包括 0) 的字符串
//
// 经典的带回溯的单星号扫描，不需要正则引擎。
// 输入保证不含 "/" (段已经切开)。
func matchSegment(pattern, s string) bool {
	pi, si := 0, 0
	star, backtrack := -1, 0

	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			// 记录星号位置，先假设它匹配空串
			star = pi
			backtrack = si
			pi++
		case star >= 0:
			// 失配：回到最近的星号，让它多吞一个字符
			backtrack++
			si = backtrack
			pi = star + 1
		default:
			return false
		}
	}

	// 把尾部剩余的 '*' 消耗掉
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
