package texture

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
)

// Transition is the synchronization needed to move an image from one layout
// to another.
type Transition struct {
	OldLayout core1_0.ImageLayout
	NewLayout core1_0.ImageLayout

	SrcAccessMask core1_0.AccessFlags
	DstAccessMask core1_0.AccessFlags
	SrcStage      core1_0.PipelineStageFlags
	DstStage      core1_0.PipelineStageFlags
}

var transitions = []Transition{
	{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutTransferDstOptimal,
		SrcAccessMask: 0,
		DstAccessMask: core1_0.AccessTransferWrite,
		SrcStage:      core1_0.PipelineStageTopOfPipe,
		DstStage:      core1_0.PipelineStageTransfer,
	},
	{
		OldLayout:     core1_0.ImageLayoutTransferDstOptimal,
		NewLayout:     core1_0.ImageLayoutShaderReadOnlyOptimal,
		SrcAccessMask: core1_0.AccessTransferWrite,
		DstAccessMask: core1_0.AccessShaderRead,
		SrcStage:      core1_0.PipelineStageTransfer,
		DstStage:      core1_0.PipelineStageFragmentShader,
	},
	{
		OldLayout:     core1_0.ImageLayoutUndefined,
		NewLayout:     core1_0.ImageLayoutColorAttachmentOptimal,
		SrcAccessMask: 0,
		DstAccessMask: core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
		SrcStage:      core1_0.PipelineStageTopOfPipe,
		DstStage:      core1_0.PipelineStageColorAttachmentOutput,
	},
}

// LookupTransition returns the table entry for oldLayout -> newLayout.
func LookupTransition(oldLayout, newLayout core1_0.ImageLayout) (Transition, error) {
	for _, t := range transitions {
		if t.OldLayout == oldLayout && t.NewLayout == newLayout {
			return t, nil
		}
	}
	return Transition{}, errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", oldLayout, newLayout)
}

// Barrier returns the image barrier performing t over the first mipLevels
// levels and layers layers of image.
func (t Transition) Barrier(image gpu.Image, mipLevels, layers int) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:         image,
		OldLayout:     t.OldLayout,
		NewLayout:     t.NewLayout,
		SrcAccessMask: t.SrcAccessMask,
		DstAccessMask: t.DstAccessMask,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
}

// TransitionImageLayout moves every level and layer of image from oldLayout
// to newLayout in a single-use command buffer and waits for it to finish.
func TransitionImageLayout(pool gpu.CommandPool, queue gpu.Queue, image gpu.Image, oldLayout, newLayout core1_0.ImageLayout, mipLevels, layers int) error {
	transition, err := LookupTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}

	err = gpu.RunSingleUse(pool, queue, func(buffer gpu.CommandBuffer) error {
		return buffer.PipelineBarrier(transition.SrcStage, transition.DstStage, transition.Barrier(image, mipLevels, layers))
	})
	return errors.Wrapf(err, "transition %s -> %s", oldLayout, newLayout)
}
