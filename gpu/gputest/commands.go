package gputest

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

type CommandKind int

const (
	CmdBarrier CommandKind = iota
	CmdCopyBufferToImage
	CmdBlitImage
)

// Command is one recorded command. Submit is the 1-based submission that
// carried it.
type Command struct {
	Kind   CommandKind
	Submit int

	SrcStage core1_0.PipelineStageFlags
	DstStage core1_0.PipelineStageFlags
	Barriers []gpu.ImageBarrier

	Buffer    *Buffer
	Copies    []core1_0.BufferImageCopy
	SrcImage  *Image
	DstImage  *Image
	SrcLayout core1_0.ImageLayout
	DstLayout core1_0.ImageLayout
	Blits     []core1_0.ImageBlit
	Filter    core1_0.Filter
}

type CommandPool struct {
	dev *Device
	// Allocated counts command buffers handed out.
	Allocated int
}

func (p *CommandPool) AllocateCommandBuffer() (gpu.CommandBuffer, error) {
	if err := p.dev.check(OpAllocateCommandBuffer); err != nil {
		return nil, errors.Mark(err, gpu.ErrDevice)
	}
	p.Allocated++
	p.dev.liveCmdBuffer++
	return &CommandBuffer{dev: p.dev}, nil
}

type Queue struct {
	dev *Device
}

func (q *Queue) SubmitAndWait(cb gpu.CommandBuffer) error {
	buffer, ok := cb.(*CommandBuffer)
	if !ok {
		return errors.Newf("submit: foreign command buffer %T", cb)
	}
	if err := q.dev.check(OpSubmit); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	if buffer.state != stateExecutable {
		q.dev.violate("submit of command buffer that is not executable")
	}

	q.dev.Submits++
	for _, cmd := range buffer.commands {
		cmd.Submit = q.dev.Submits
		q.dev.execute(cmd)
		q.dev.Commands = append(q.dev.Commands, cmd)
	}
	buffer.state = stateInitial
	return nil
}

const (
	stateInitial = iota
	stateRecording
	stateExecutable
	stateFreed
)

type CommandBuffer struct {
	dev      *Device
	state    int
	commands []Command
}

func (c *CommandBuffer) Begin() error {
	if err := c.dev.check(OpBeginCommandBuffer); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	if c.state != stateInitial {
		c.dev.violate("begin of command buffer in state %d", c.state)
	}
	c.state = stateRecording
	c.commands = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if err := c.dev.check(OpEndCommandBuffer); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	if c.state != stateRecording {
		c.dev.violate("end of command buffer in state %d", c.state)
	}
	c.state = stateExecutable
	return nil
}

func (c *CommandBuffer) Free() {
	if c.state == stateFreed {
		c.dev.violate("command buffer freed twice")
		return
	}
	c.state = stateFreed
	c.dev.liveCmdBuffer--
}

func (c *CommandBuffer) record(op Op, cmd Command) error {
	if err := c.dev.check(op); err != nil {
		return errors.Mark(err, gpu.ErrDevice)
	}
	if c.state != stateRecording {
		c.dev.violate("%s recorded outside Begin/End", op)
	}
	c.commands = append(c.commands, cmd)
	return nil
}

func (c *CommandBuffer) PipelineBarrier(srcStage, dstStage core1_0.PipelineStageFlags, barriers ...gpu.ImageBarrier) error {
	return c.record(OpPipelineBarrier, Command{
		Kind:     CmdBarrier,
		SrcStage: srcStage,
		DstStage: dstStage,
		Barriers: append([]gpu.ImageBarrier(nil), barriers...),
	})
}

func (c *CommandBuffer) CopyBufferToImage(src gpu.Buffer, dst gpu.Image, dstLayout core1_0.ImageLayout, regions ...core1_0.BufferImageCopy) error {
	buffer, ok := src.(*Buffer)
	if !ok {
		return errors.Newf("copy buffer to image: foreign buffer %T", src)
	}
	image, ok := dst.(*Image)
	if !ok {
		return errors.Newf("copy buffer to image: foreign image %T", dst)
	}

	return c.record(OpCopyBufferToImage, Command{
		Kind:      CmdCopyBufferToImage,
		Buffer:    buffer,
		DstImage:  image,
		DstLayout: dstLayout,
		Copies:    append([]core1_0.BufferImageCopy(nil), regions...),
	})
}

func (c *CommandBuffer) BlitImage(src gpu.Image, srcLayout core1_0.ImageLayout, dst gpu.Image, dstLayout core1_0.ImageLayout, regions []core1_0.ImageBlit, filter core1_0.Filter) error {
	srcImage, ok := src.(*Image)
	if !ok {
		return errors.Newf("blit image: foreign source image %T", src)
	}
	dstImage, ok := dst.(*Image)
	if !ok {
		return errors.Newf("blit image: foreign destination image %T", dst)
	}

	return c.record(OpBlitImage, Command{
		Kind:      CmdBlitImage,
		SrcImage:  srcImage,
		DstImage:  dstImage,
		SrcLayout: srcLayout,
		DstLayout: dstLayout,
		Blits:     append([]core1_0.ImageBlit(nil), regions...),
		Filter:    filter,
	})
}
