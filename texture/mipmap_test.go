package texture

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu/gputest"
)

func TestMipLevelCount(t *testing.T) {
	for _, x := range [...]struct{ w, h, want int }{
		{1, 1, 1},
		{2, 1, 2},
		{3, 3, 2},
		{4, 4, 3},
		{63, 1, 6},
		{64, 64, 7},
		{64, 512, 10},
		{1000, 10, 10},
		{0, 0, 1},
	} {
		if got := MipLevelCount(x.w, x.h); got != x.want {
			t.Errorf("MipLevelCount(%d, %d)\nhave %d\nwant %d", x.w, x.h, got, x.want)
		}
	}
}

// uploadedImage returns an image whose level 0 holds solid layer colors and
// whose levels are all in transfer-dst layout, as after the upload steps.
func uploadedImage(t *testing.T, dev *gputest.Device, width, height, levels, layers int) *gputest.Image {
	t.Helper()

	spec := cubeSpec(width, height, levels)
	spec.Layers = layers
	image, memory, err := CreateImage(dev, spec, dev.Memory)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	t.Cleanup(func() {
		image.Destroy()
		memory.Free()
	})

	pool, queue := dev.CommandPool(), dev.Queue()
	err = TransitionImageLayout(pool, queue, image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, levels, layers)
	if err != nil {
		t.Fatalf("TransitionImageLayout: %v", err)
	}

	pixels := solidLayers(width, height, layers)
	buffer, bufferMemory, err := stagingFor(dev, pixels)
	if err != nil {
		t.Fatalf("staging: %v", err)
	}
	defer bufferMemory.Free()
	defer buffer.Destroy()

	if err := copyBufferToImage(pool, queue, buffer, image, width, height, layers); err != nil {
		t.Fatalf("copyBufferToImage: %v", err)
	}

	dev.Commands = nil
	dev.Submits = 0
	return image.(*gputest.Image)
}

func TestGenerateMipmapsSingleLevel(t *testing.T) {
	dev := gputest.NewDevice()
	image := uploadedImage(t, dev, 16, 16, 1, 6)
	pool := dev.CommandPool()

	for _, levels := range []int{1, 0} {
		if err := GenerateMipmaps(pool, dev.Queue(), image, 16, 16, levels, 6); err != nil {
			t.Fatalf("GenerateMipmaps(%d levels): %v", levels, err)
		}
		if err := GenerateCubeMipmaps(pool, dev.Queue(), image, 16, 16, levels, 6); err != nil {
			t.Fatalf("GenerateCubeMipmaps(%d levels): %v", levels, err)
		}
	}
	if len(dev.Commands) != 0 || dev.Submits != 0 || pool.Allocated != 0 {
		t.Errorf("single level mip generation recorded %d commands in %d submits", len(dev.Commands), dev.Submits)
	}
	if got := image.Layout(0, 0); got != core1_0.ImageLayoutTransferDstOptimal {
		t.Errorf("layout\nhave %v\nwant %v", got, core1_0.ImageLayoutTransferDstOptimal)
	}
	checkClean(t, dev)
}

func TestGenerateMipmaps(t *testing.T) {
	for _, x := range [...]struct {
		width, height int
		want          [][2]int
	}{
		{64, 16, [][2]int{{32, 8}, {16, 4}, {8, 2}, {4, 1}, {2, 1}, {1, 1}}},
		{5, 12, [][2]int{{2, 6}, {1, 3}, {1, 1}}},
		{8, 8, [][2]int{{4, 4}, {2, 2}, {1, 1}}},
	} {
		dev := gputest.NewDevice()
		levels := MipLevelCount(x.width, x.height)
		image := uploadedImage(t, dev, x.width, x.height, levels, 6)

		if err := GenerateMipmaps(dev.CommandPool(), dev.Queue(), image, x.width, x.height, levels, 6); err != nil {
			t.Fatalf("GenerateMipmaps(%dx%d): %v", x.width, x.height, err)
		}

		blits := dev.CommandsOf(gputest.CmdBlitImage)
		if len(blits) != levels-1 {
			t.Fatalf("GenerateMipmaps(%dx%d): blits\nhave %d\nwant %d", x.width, x.height, len(blits), levels-1)
		}
		prevW, prevH := x.width, x.height
		for i, cmd := range blits {
			blit := cmd.Blits[0]
			dst := blit.DstOffsets[1]
			if dst.X != x.want[i][0] || dst.Y != x.want[i][1] {
				t.Errorf("blit %d destination\nhave %dx%d\nwant %dx%d", i, dst.X, dst.Y, x.want[i][0], x.want[i][1])
			}
			src := blit.SrcOffsets[1]
			if src.X != prevW || src.Y != prevH {
				t.Errorf("blit %d source\nhave %dx%d\nwant %dx%d", i, src.X, src.Y, prevW, prevH)
			}
			if blit.SrcSubresource.MipLevel != i || blit.DstSubresource.MipLevel != i+1 {
				t.Errorf("blit %d levels %d -> %d", i, blit.SrcSubresource.MipLevel, blit.DstSubresource.MipLevel)
			}
			if blit.SrcSubresource.LayerCount != 1 || blit.DstSubresource.LayerCount != 1 {
				t.Errorf("blit %d spans %d layers, want layer 0 only", i, blit.SrcSubresource.LayerCount)
			}
			if cmd.Filter != core1_0.FilterLinear {
				t.Errorf("blit %d filter %v", i, cmd.Filter)
			}
			prevW, prevH = dst.X, dst.Y
		}

		if n := len(dev.CommandsOf(gputest.CmdBarrier)); n != 2*(levels-1)+1 {
			t.Errorf("barriers\nhave %d\nwant %d", n, 2*(levels-1)+1)
		}
		if dev.Submits != 1 {
			t.Errorf("submits\nhave %d\nwant 1", dev.Submits)
		}
		for level := 0; level < levels; level++ {
			for layer := 0; layer < 6; layer++ {
				if got := image.Layout(level, layer); got != core1_0.ImageLayoutShaderReadOnlyOptimal {
					t.Errorf("level %d layer %d layout\nhave %v", level, layer, got)
				}
			}
		}

		last := image.Read(levels-1, 0)
		if want := layerColor(0); !bytes.Equal(last, want[:]) {
			t.Errorf("layer 0 last level\nhave %v\nwant %v", last, want)
		}
		if other := image.Read(levels-1, 3); bytes.Equal(other, layerColor(3)) {
			t.Error("layer 3 was downsampled by the layer 0 generator")
		}
		checkClean(t, dev)
	}
}

func TestGenerateCubeMipmaps(t *testing.T) {
	const size, layers = 16, 6
	dev := gputest.NewDevice()
	levels := MipLevelCount(size, size)
	image := uploadedImage(t, dev, size, size, levels, layers)

	if err := GenerateCubeMipmaps(dev.CommandPool(), dev.Queue(), image, size, size, levels, layers); err != nil {
		t.Fatalf("GenerateCubeMipmaps: %v", err)
	}

	blits := dev.CommandsOf(gputest.CmdBlitImage)
	if len(blits) != levels-1 {
		t.Fatalf("blits\nhave %d\nwant %d", len(blits), levels-1)
	}
	for i, cmd := range blits {
		if n := cmd.Blits[0].SrcSubresource.LayerCount; n != layers {
			t.Errorf("blit %d spans %d layers, want %d", i, n, layers)
		}
	}

	for layer := 0; layer < layers; layer++ {
		want := layerColor(layer)
		for level := 1; level < levels; level++ {
			w := size >> level
			got := image.Read(level, layer)
			if !bytes.Equal(got, bytes.Repeat(want, w*w)) {
				t.Errorf("layer %d level %d not filled with the layer color", layer, level)
			}
			if l := image.Layout(level, layer); l != core1_0.ImageLayoutShaderReadOnlyOptimal {
				t.Errorf("layer %d level %d layout\nhave %v", layer, level, l)
			}
		}
	}
	checkClean(t, dev)
}

func TestGenerateMipmapsFailure(t *testing.T) {
	for _, op := range [...]gputest.Op{
		gputest.OpAllocateCommandBuffer,
		gputest.OpBeginCommandBuffer,
		gputest.OpPipelineBarrier,
		gputest.OpBlitImage,
		gputest.OpEndCommandBuffer,
		gputest.OpSubmit,
	} {
		dev := gputest.NewDevice()
		image := uploadedImage(t, dev, 8, 8, 4, 6)
		dev.FailOn(op, 0)

		err := GenerateMipmaps(dev.CommandPool(), dev.Queue(), image, 8, 8, 4, 6)
		if !errors.Is(err, gputest.ErrInjected) {
			t.Errorf("GenerateMipmaps with failing %s\nhave %v\nwant %v", op, err, gputest.ErrInjected)
		}
		if dev.Submits != 0 {
			t.Errorf("GenerateMipmaps with failing %s submitted", op)
		}
		// Only the image and its memory remain.
		if n := dev.Live(); n != 2 {
			t.Errorf("GenerateMipmaps with failing %s: live objects\nhave %d\nwant 2", op, n)
		}
	}
}

func TestCheckMipmapSupport(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Features = map[core1_0.Format]core1_0.FormatFeatureFlags{
		core1_0.FormatR32SignedFloat: core1_0.FormatFeatureSampledImage,
	}

	if err := CheckMipmapSupport(dev, core1_0.FormatR8G8B8A8SRGB); err != nil {
		t.Errorf("CheckMipmapSupport(R8G8B8A8 sRGB): unexpected error: %v", err)
	}
	if err := CheckMipmapSupport(dev, core1_0.FormatR32SignedFloat); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("CheckMipmapSupport(R32 float)\nhave %v\nwant %v", err, ErrUnsupportedFormat)
	}
}
