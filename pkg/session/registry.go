// pkg/session/registry.go
//
// 不透明句柄 + 状态对象的生命周期管理。
//
// 引擎内部 (pkg/vfs) 走 Go 惯用的 error 返回；这一层把它重新
// 包装成跨边界风格的契约：每个创建类调用要么返回可用句柄，
// 要么返回零句柄 + 一个携带人类可读消息的状态句柄。每种句柄
// 都有显式释放操作，释放是幂等的：重复释放或释放从未创建的
// 句柄是无害的空操作，而不是故障。
//
// 句柄是"代际校验"的：低 32 位是槽位索引，高 32 位是代数。
// 槽位回收后代数递增，拿着旧句柄访问会失败而不是命中新资源。
package session

import (
	"context"
	"fmt"
	"sync"

	"nestfs/pkg/vfs"
)

// Handle 是不透明句柄。零值永远无效，表示"创建失败"。
type Handle uint64

// NilHandle 是创建失败时返回的空句柄
const NilHandle Handle = 0

const (
	indexBits = 32
	indexMask = (1 << indexBits) - 1
)

func makeHandle(index uint32, generation uint32) Handle {
	return Handle(uint64(generation)<<indexBits | uint64(index))
}

func (h Handle) index() uint32      { return uint32(uint64(h) & indexMask) }
func (h Handle) generation() uint32 { return uint32(uint64(h) >> indexBits) }

// slot 是注册表里的一个资源槽
type slot struct {
	generation uint32
	live       bool
	value      any
}

// Registry 持有一个进程内的句柄竞技场。
// 注册表自身的增删是加锁的簿记；引擎层的单写者契约不变。
type Registry struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

func NewRegistry() *Registry {
	// 0 号槽永久烧掉，保证 NilHandle 永远无效
	return &Registry{slots: make([]slot, 1)}
}

func (r *Registry) allocate(value any) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		index = uint32(len(r.slots) - 1)
	}

	s := &r.slots[index]
	s.generation++
	s.live = true
	s.value = value
	return makeHandle(index, s.generation)
}

// lookup 按句柄取资源；代数不匹配或槽位已释放都算无效
func (r *Registry) lookup(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := h.index()
	if index == 0 || int(index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[index]
	if !s.live || s.generation != h.generation() {
		return nil, false
	}
	return s.value, true
}

// release 释放槽位；无效句柄是空操作，返回被释放的资源
func (r *Registry) release(h Handle) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := h.index()
	if index == 0 || int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if !s.live || s.generation != h.generation() {
		return nil, false
	}
	value := s.value
	s.live = false
	s.value = nil
	r.free = append(r.free, index)
	return value, true
}

// status 是操作结果的载体：持有一条人类可读的失败描述
type status struct {
	message string
}

// fail 为一个错误分配状态句柄
func (r *Registry) fail(err error) Handle {
	return r.allocate(&status{message: err.Error()})
}

// -----------------------------------------------------------------------------
// 操作面：与跨边界契约逐项对应
// -----------------------------------------------------------------------------

// OpenStore 打开 (或创建) 一个容器。
// 成功: (store, NilHandle)；失败: (NilHandle, status)。
func (r *Registry) OpenStore(location string) (Handle, Handle) {
	fs, err := vfs.Open(location, true)
	if err != nil {
		return NilHandle, r.fail(err)
	}
	return r.allocate(fs), NilHandle
}

// CloseStore 释放容器句柄。
// 契约要求调用方先释放全部派生的文件句柄；违反属于未定义行为，
// 这里不做运行时检查。
func (r *Registry) CloseStore(h Handle) {
	if value, ok := r.release(h); ok {
		if fs, ok := value.(*vfs.FileSystem); ok {
			_ = fs.Close()
		}
	}
}

// Push 摄取真实文件，成功返回已打开的文件句柄
func (r *Registry) Push(ctx context.Context, storeHandle Handle, virtualPath, realPath string, chunkSizeHint int64) (Handle, Handle) {
	fs, ok := r.fileSystem(storeHandle)
	if !ok {
		return NilHandle, r.fail(fmt.Errorf("store handle is not valid"))
	}
	file, err := fs.Push(ctx, virtualPath, realPath, chunkSizeHint, nil)
	if err != nil {
		return NilHandle, r.fail(err)
	}
	return r.allocate(file), NilHandle
}

// Open 按虚拟路径打开已存文件
func (r *Registry) Open(ctx context.Context, storeHandle Handle, virtualPath string) (Handle, Handle) {
	fs, ok := r.fileSystem(storeHandle)
	if !ok {
		return NilHandle, r.fail(fmt.Errorf("store handle is not valid"))
	}
	file, err := fs.OpenFile(ctx, virtualPath)
	if err != nil {
		return NilHandle, r.fail(err)
	}
	return r.allocate(file), NilHandle
}

// CloseFile 释放文件句柄 (幂等空操作语义同上)
func (r *Registry) CloseFile(h Handle) {
	if value, ok := r.release(h); ok {
		if file, ok := value.(*vfs.File); ok {
			file.Close()
		}
	}
}

// Pull 把打开的文件重建到真实路径。
// 返回 NilHandle 表示成功，否则是需要调用方释放的状态句柄。
func (r *Registry) Pull(ctx context.Context, fileHandle Handle, destPath string) Handle {
	file, ok := r.file(fileHandle)
	if !ok {
		return r.fail(vfs.ErrNotOpen)
	}
	if err := file.Pull(ctx, destPath); err != nil {
		return r.fail(err)
	}
	return NilHandle
}

// Size 返回文件字节数。
// 契约无错误通道：句柄无效或未打开一律返回 -1。
func (r *Registry) Size(fileHandle Handle) int64 {
	file, ok := r.file(fileHandle)
	if !ok {
		return -1
	}
	return file.Size()
}

// Find 枚举命中模式的文件，产出一组 unopened 句柄。
// 顺序未定义。
func (r *Registry) Find(ctx context.Context, storeHandle Handle, pattern string) ([]Handle, Handle) {
	fs, ok := r.fileSystem(storeHandle)
	if !ok {
		return nil, r.fail(fmt.Errorf("store handle is not valid"))
	}
	files, err := fs.Find(ctx, pattern)
	if err != nil {
		return nil, r.fail(err)
	}
	handles := make([]Handle, 0, len(files))
	for _, file := range files {
		handles = append(handles, r.allocate(file))
	}
	return handles, NilHandle
}

// OpenFound 把 Find 产出的 unopened 句柄验证为 open
func (r *Registry) OpenFound(ctx context.Context, fileHandle Handle) Handle {
	file, ok := r.file(fileHandle)
	if !ok {
		return r.fail(vfs.ErrNotOpen)
	}
	if err := file.Open(ctx); err != nil {
		return r.fail(err)
	}
	return NilHandle
}

// FilePath 返回句柄指向的虚拟路径 (unopened 也可用)，无效句柄返回空串
func (r *Registry) FilePath(fileHandle Handle) string {
	file, ok := r.file(fileHandle)
	if !ok {
		return ""
	}
	return file.Path()
}

// StatusMessage 读取状态句柄携带的失败描述。
// 无效句柄 (包括 NilHandle) 返回空串。
func (r *Registry) StatusMessage(h Handle) string {
	value, ok := r.lookup(h)
	if !ok {
		return ""
	}
	st, ok := value.(*status)
	if !ok {
		return ""
	}
	return st.message
}

// CloseStatus 释放状态句柄。读没读过消息都必须释放。
func (r *Registry) CloseStatus(h Handle) {
	r.release(h)
}

// LiveCount 返回当前存活的资源数 (资源纪律测试用)
func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.slots {
		if s.live {
			count++
		}
	}
	return count
}

func (r *Registry) fileSystem(h Handle) (*vfs.FileSystem, bool) {
	value, ok := r.lookup(h)
	if !ok {
		return nil, false
	}
	fs, ok := value.(*vfs.FileSystem)
	return fs, ok
}

func (r *Registry) file(h Handle) (*vfs.File, bool) {
	value, ok := r.lookup(h)
	if !ok {
		return nil, false
	}
	file, ok := value.(*vfs.File)
	return file, ok
}
