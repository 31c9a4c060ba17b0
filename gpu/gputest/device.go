// Package gputest provides an in-memory gpu.Device that executes transfer
// commands on host memory and records everything it is asked to do.
//
// Images keep one RGBA8 plane per mip level and array layer, so uploads and
// blits can be read back. Each subresource also tracks its current layout;
// commands that disagree with the tracked layout are appended to
// Device.Violations instead of failing, so tests can assert on them.
package gputest

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

// Op names a device call that can be made to fail.
type Op int

const (
	OpCreateImage Op = iota
	OpCreateBuffer
	OpAllocateMemory
	OpBindImageMemory
	OpBindBufferMemory
	OpMapMemory
	OpCreateImageView
	OpCreateSampler
	OpAllocateCommandBuffer
	OpBeginCommandBuffer
	OpEndCommandBuffer
	OpSubmit
	OpPipelineBarrier
	OpCopyBufferToImage
	OpBlitImage
)

var opNames = map[Op]string{
	OpCreateImage:           "create image",
	OpCreateBuffer:          "create buffer",
	OpAllocateMemory:        "allocate memory",
	OpBindImageMemory:       "bind image memory",
	OpBindBufferMemory:      "bind buffer memory",
	OpMapMemory:             "map memory",
	OpCreateImageView:       "create image view",
	OpCreateSampler:         "create sampler",
	OpAllocateCommandBuffer: "allocate command buffer",
	OpBeginCommandBuffer:    "begin command buffer",
	OpEndCommandBuffer:      "end command buffer",
	OpSubmit:                "submit",
	OpPipelineBarrier:       "pipeline barrier",
	OpCopyBufferToImage:     "copy buffer to image",
	OpBlitImage:             "blit image",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ErrInjected is the cause of every failure requested through FailOn.
var ErrInjected = errors.New("injected failure")

// Release records one object being destroyed or freed.
type Release struct {
	Kind string
	ID   int
}

// Device is a gpu.Device backed by host memory.
type Device struct {
	// Memory is the memory type table. NewDevice installs a device-local
	// type at index 0 and a host-visible, host-coherent type at index 1.
	Memory *gpu.MemoryProperties

	// Features overrides the optimal tiling features reported per format.
	// Formats not present report DefaultFeatures.
	Features        map[core1_0.Format]core1_0.FormatFeatureFlags
	DefaultFeatures core1_0.FormatFeatureFlags

	Images   []*Image
	Buffers  []*Buffer
	Memories []*Memory
	Views    []*ImageView
	Samplers []*Sampler

	// Commands holds every command that reached the queue, in order.
	Commands []Command
	// Submits counts successful queue submissions.
	Submits int

	Releases   []Release
	Violations []string

	fail          map[Op]failure
	nextID        int
	liveCmdBuffer int
}

type failure struct {
	after int
	err   error
}

var _ gpu.Device = &Device{}

func NewDevice() *Device {
	return &Device{
		Memory: &gpu.MemoryProperties{
			MemoryTypes: []gpu.MemoryType{
				{PropertyFlags: core1_0.MemoryPropertyDeviceLocal},
				{PropertyFlags: core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent},
			},
		},
		DefaultFeatures: core1_0.FormatFeatureSampledImage | core1_0.FormatFeatureSampledImageFilterLinear,
		fail:            make(map[Op]failure),
	}
}

// FailOn makes op fail once it has succeeded after times.
func (d *Device) FailOn(op Op, after int) {
	d.fail[op] = failure{after: after, err: errors.Wrapf(ErrInjected, "%s", op)}
}

func (d *Device) check(op Op) error {
	f, ok := d.fail[op]
	if !ok {
		return nil
	}
	if f.after > 0 {
		f.after--
		d.fail[op] = f
		return nil
	}
	return f.err
}

func (d *Device) violate(format string, args ...any) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

func (d *Device) release(kind string, id int, count *int) {
	*count++
	if *count > 1 {
		d.violate("%s %d released %d times", kind, id, *count)
		return
	}
	d.Releases = append(d.Releases, Release{Kind: kind, ID: id})
}

// Live reports how many created objects have not been released.
func (d *Device) Live() int {
	live := d.liveCmdBuffer
	for _, image := range d.Images {
		if image.Destroyed == 0 {
			live++
		}
	}
	for _, buffer := range d.Buffers {
		if buffer.Destroyed == 0 {
			live++
		}
	}
	for _, memory := range d.Memories {
		if memory.Freed == 0 {
			live++
		}
	}
	for _, view := range d.Views {
		if view.Destroyed == 0 {
			live++
		}
	}
	for _, sampler := range d.Samplers {
		if sampler.Destroyed == 0 {
			live++
		}
	}
	return live
}

// CommandsOf returns the recorded commands of the given kind.
func (d *Device) CommandsOf(kind CommandKind) []Command {
	var out []Command
	for _, cmd := range d.Commands {
		if cmd.Kind == kind {
			out = append(out, cmd)
		}
	}
	return out
}

func (d *Device) OptimalTilingFeatures(format core1_0.Format) core1_0.FormatFeatureFlags {
	if features, ok := d.Features[format]; ok {
		return features
	}
	return d.DefaultFeatures
}

func (d *Device) CreateImage(info gpu.ImageCreateInfo) (gpu.Image, error) {
	if err := d.check(OpCreateImage); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}
	if info.Extent.Width < 1 || info.Extent.Height < 1 || info.MipLevels < 1 || info.ArrayLayers < 1 {
		d.violate("create image with invalid info %+v", info)
	}

	image := &Image{dev: d, ID: d.id(), Info: info}
	d.Images = append(d.Images, image)
	return image, nil
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	if err := d.check(OpCreateBuffer); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}

	buffer := &Buffer{dev: d, ID: d.id(), Info: info}
	d.Buffers = append(d.Buffers, buffer)
	return buffer, nil
}

func (d *Device) AllocateMemory(info gpu.MemoryAllocateInfo) (gpu.Memory, error) {
	if err := d.check(OpAllocateMemory); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}
	if info.MemoryTypeIndex < 0 || info.MemoryTypeIndex >= len(d.Memory.MemoryTypes) {
		d.violate("allocate memory from type %d", info.MemoryTypeIndex)
	}

	memory := &Memory{dev: d, ID: d.id(), Info: info, data: make([]byte, info.AllocationSize)}
	d.Memories = append(d.Memories, memory)
	return memory, nil
}

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	if err := d.check(OpCreateImageView); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}
	image, ok := info.Image.(*Image)
	if !ok {
		return nil, errors.Newf("image view of foreign image %T", info.Image)
	}
	if image.Destroyed > 0 {
		d.violate("image view of destroyed image %d", image.ID)
	}
	r := info.SubresourceRange
	if r.BaseMipLevel+r.LevelCount > image.Info.MipLevels || r.BaseArrayLayer+r.LayerCount > image.Info.ArrayLayers {
		d.violate("image view range %+v outside image %d", r, image.ID)
	}

	view := &ImageView{dev: d, ID: d.id(), Info: info}
	d.Views = append(d.Views, view)
	return view, nil
}

func (d *Device) CreateSampler(info gpu.SamplerCreateInfo) (gpu.Sampler, error) {
	if err := d.check(OpCreateSampler); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}

	sampler := &Sampler{dev: d, ID: d.id(), Info: info}
	d.Samplers = append(d.Samplers, sampler)
	return sampler, nil
}

// CommandPool returns a pool whose buffers record against d.
func (d *Device) CommandPool() *CommandPool {
	return &CommandPool{dev: d}
}

// Queue returns a queue that executes buffers recorded against d.
func (d *Device) Queue() *Queue {
	return &Queue{dev: d}
}

type ImageView struct {
	dev       *Device
	ID        int
	Info      gpu.ImageViewCreateInfo
	Destroyed int
}

func (v *ImageView) Destroy() {
	v.dev.release("image view", v.ID, &v.Destroyed)
}

type Sampler struct {
	dev       *Device
	ID        int
	Info      gpu.SamplerCreateInfo
	Destroyed int
}

func (s *Sampler) Destroy() {
	s.dev.release("sampler", s.ID, &s.Destroyed)
}
