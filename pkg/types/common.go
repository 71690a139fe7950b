// pkg/types/common.go
package types

import (
	"strings"
)

// VirtualPath 是容器内文件的唯一标识 (规范化后的 "a/b/c" 形式)
// 这是一个"值对象"，构造之后不可变。
// 规范化规则:
//   - 分隔符统一为 "/"
//   - 丢弃空段和 "." 段 (所以 "/a//b/" == "a/b")
//   - ".." 在路径内部消解上一段，越过根则直接丢弃
//
// 规范化结果为空串的输入 (如 "/", ".", "..") 不是合法的文件标识，
// 由上层用 IsZero 拦截。
type VirtualPath string

// NewVirtualPath 将任意用户输入规范化为 VirtualPath
func NewVirtualPath(raw string) VirtualPath {
	// 兼容 Windows 风格输入，统一成正斜杠
	raw = strings.ReplaceAll(raw, "\\", "/")

	segments := strings.Split(raw, "/")
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch segment {
		case "", ".":
			// 空段和当前目录：直接丢弃
		case "..":
			// 父目录：消解前一段 (越过根则无事发生)
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, segment)
		}
	}
	return VirtualPath(strings.Join(parts, "/"))
}

func (p VirtualPath) String() string { return string(p) }

// IsZero 判断路径是否为空 (空路径不是合法的文件标识)
func (p VirtualPath) IsZero() bool { return p == "" }

// Segments 返回路径的各段，空路径返回 nil
func (p VirtualPath) Segments() []string {
	if p.IsZero() {
		return nil
	}
	return strings.Split(string(p), "/")
}

// MemoryLocation 是保留的"纯内存容器"位置哨兵，
// 打开它会得到一个进程退出即消失的容器。
const MemoryLocation = ":memory:"
