package gputest

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

const (
	imageAlignment  = 4096
	bufferAlignment = 256
)

func roundUp(n, alignment int) int {
	return (n + alignment - 1) / alignment * alignment
}

func (d *Device) allTypeBits() uint32 {
	n := len(d.Memory.MemoryTypes)
	if n >= 32 {
		return ^uint32(0)
	}
	return uint32(1)<<n - 1
}

type Image struct {
	dev       *Device
	ID        int
	Info      gpu.ImageCreateInfo
	Bound     *Memory
	Destroyed int

	planes  [][]byte
	layouts []core1_0.ImageLayout
}

// LevelExtent returns the size of mip level level.
func (i *Image) LevelExtent(level int) (width, height int) {
	width, height = i.Info.Extent.Width>>level, i.Info.Extent.Height>>level
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

func (i *Image) index(level, layer int) int {
	return level*i.Info.ArrayLayers + layer
}

func (i *Image) contains(level, layer int) bool {
	return level >= 0 && level < i.Info.MipLevels && layer >= 0 && layer < i.Info.ArrayLayers
}

// Read returns a copy of the RGBA8 contents of one subresource.
func (i *Image) Read(level, layer int) []byte {
	if i.planes == nil || !i.contains(level, layer) {
		return nil
	}
	return append([]byte(nil), i.planes[i.index(level, layer)]...)
}

// Layout returns the tracked layout of one subresource.
func (i *Image) Layout(level, layer int) core1_0.ImageLayout {
	if i.layouts == nil || !i.contains(level, layer) {
		return core1_0.ImageLayoutUndefined
	}
	return i.layouts[i.index(level, layer)]
}

func (i *Image) MemoryRequirements() gpu.MemoryRequirements {
	size := 0
	for level := 0; level < i.Info.MipLevels; level++ {
		w, h := i.LevelExtent(level)
		size += w * h * 4 * i.Info.ArrayLayers
	}

	return gpu.MemoryRequirements{
		Size:           roundUp(size, imageAlignment),
		Alignment:      imageAlignment,
		MemoryTypeBits: i.dev.allTypeBits(),
	}
}

func (i *Image) BindMemory(memory gpu.Memory, offset int) error {
	if err := i.dev.check(OpBindImageMemory); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	mem, ok := memory.(*Memory)
	if !ok {
		return errors.Newf("bind image memory: foreign memory %T", memory)
	}
	if i.Bound != nil {
		i.dev.violate("image %d bound twice", i.ID)
	}
	if mem.Info.AllocationSize-offset < i.MemoryRequirements().Size {
		i.dev.violate("image %d bound to %d bytes at offset %d, needs %d", i.ID, mem.Info.AllocationSize, offset, i.MemoryRequirements().Size)
	}

	i.Bound = mem
	count := i.Info.MipLevels * i.Info.ArrayLayers
	i.planes = make([][]byte, count)
	i.layouts = make([]core1_0.ImageLayout, count)
	for level := 0; level < i.Info.MipLevels; level++ {
		w, h := i.LevelExtent(level)
		for layer := 0; layer < i.Info.ArrayLayers; layer++ {
			i.planes[i.index(level, layer)] = make([]byte, w*h*4)
			i.layouts[i.index(level, layer)] = core1_0.ImageLayoutUndefined
		}
	}
	return nil
}

func (i *Image) Destroy() {
	i.dev.release("image", i.ID, &i.Destroyed)
}

type Buffer struct {
	dev       *Device
	ID        int
	Info      gpu.BufferCreateInfo
	Bound     *Memory
	Destroyed int
}

func (b *Buffer) MemoryRequirements() gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:           roundUp(b.Info.Size, bufferAlignment),
		Alignment:      bufferAlignment,
		MemoryTypeBits: b.dev.allTypeBits(),
	}
}

func (b *Buffer) BindMemory(memory gpu.Memory, offset int) error {
	if err := b.dev.check(OpBindBufferMemory); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	mem, ok := memory.(*Memory)
	if !ok {
		return errors.Newf("bind buffer memory: foreign memory %T", memory)
	}
	if b.Bound != nil {
		b.dev.violate("buffer %d bound twice", b.ID)
	}
	if mem.Info.AllocationSize-offset < b.Info.Size {
		b.dev.violate("buffer %d bound to %d bytes at offset %d", b.ID, mem.Info.AllocationSize, offset)
	}
	b.Bound = mem
	return nil
}

// Contents returns the bytes backing the buffer.
func (b *Buffer) Contents() []byte {
	if b.Bound == nil {
		return nil
	}
	return b.Bound.data[:b.Info.Size]
}

func (b *Buffer) Destroy() {
	b.dev.release("buffer", b.ID, &b.Destroyed)
}

type Memory struct {
	dev    *Device
	ID     int
	Info   gpu.MemoryAllocateInfo
	Freed  int
	Mapped bool

	data []byte
}

func (m *Memory) Size() int { return m.Info.AllocationSize }

func (m *Memory) Map(offset, size int) ([]byte, error) {
	if err := m.dev.check(OpMapMemory); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}
	if m.Mapped {
		m.dev.violate("memory %d mapped twice", m.ID)
	}
	types := m.dev.Memory.MemoryTypes
	if t := m.Info.MemoryTypeIndex; t < 0 || t >= len(types) || (types[t].PropertyFlags&core1_0.MemoryPropertyHostVisible) == 0 {
		m.dev.violate("memory %d is not host visible", m.ID)
	}
	if offset < 0 || size < 0 || offset+size > len(m.data) {
		return nil, errors.Newf("map range [%d, %d) outside allocation of %d bytes", offset, offset+size, len(m.data))
	}

	m.Mapped = true
	return m.data[offset : offset+size], nil
}

func (m *Memory) Unmap() {
	if !m.Mapped {
		m.dev.violate("memory %d unmapped while not mapped", m.ID)
	}
	m.Mapped = false
}

func (m *Memory) Free() {
	m.dev.release("memory", m.ID, &m.Freed)
}
