package texture

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/cubemap/gpu"
	"github.com/vkngwrapper/cubemap/gpu/gputest"
)

func layerColor(layer int) []byte {
	return []byte{byte(40 * (layer + 1)), byte(255 - 30*layer), byte(17 * layer), 255}
}

func solidLayers(width, height, layers int) []byte {
	var pixels []byte
	for layer := 0; layer < layers; layer++ {
		pixels = append(pixels, bytes.Repeat(layerColor(layer), width*height)...)
	}
	return pixels
}

// patternPixels gives every byte of every layer a distinct-looking value.
func patternPixels(width, height, layers int) []byte {
	pixels := make([]byte, 4*width*height*layers)
	for i := range pixels {
		pixels[i] = byte(i*31 + i/97)
	}
	return pixels
}

func stagingFor(dev gpu.Device, pixels []byte) (gpu.Buffer, gpu.Memory, error) {
	props := dev.(*gputest.Device).Memory
	buffer, memory, err := gpu.CreateBuffer(dev, props, len(pixels), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, nil, err
	}
	if err := gpu.WriteData(memory, 0, pixels); err != nil {
		buffer.Destroy()
		memory.Free()
		return nil, nil, err
	}
	return buffer, memory, nil
}

func upload(dev *gputest.Device, pixels []byte, width, height, layers int, createMips bool, opts ...Option) (gpu.Image, gpu.Memory, int, error) {
	return CreateTextureImage(dev, dev.CommandPool(), dev.Queue(), dev.Memory, core1_0.FormatR8G8B8A8SRGB, pixels, width, height, layers, createMips, opts...)
}

func TestCreateTextureImageRoundTrip(t *testing.T) {
	for _, x := range [...]struct{ width, height, layers int }{
		{1, 1, 6},
		{4, 4, 6},
		{64, 64, 6},
		{7, 3, 6},
		{16, 8, 2},
	} {
		dev := gputest.NewDevice()
		pixels := patternPixels(x.width, x.height, x.layers)

		image, memory, levels, err := upload(dev, pixels, x.width, x.height, x.layers, false)
		if err != nil {
			t.Fatalf("CreateTextureImage(%+v): %v", x, err)
		}
		if levels != 1 {
			t.Errorf("CreateTextureImage(%+v): levels\nhave %d\nwant 1", x, levels)
		}

		img := image.(*gputest.Image)
		faceSize := 4 * x.width * x.height
		for layer := 0; layer < x.layers; layer++ {
			want := pixels[layer*faceSize : (layer+1)*faceSize]
			if got := img.Read(0, layer); !bytes.Equal(got, want) {
				t.Errorf("CreateTextureImage(%+v): layer %d differs after upload", x, layer)
			}
			if got := img.Layout(0, layer); got != core1_0.ImageLayoutTransferDstOptimal {
				t.Errorf("CreateTextureImage(%+v): layer %d layout\nhave %v", x, layer, got)
			}
		}

		copies := dev.CommandsOf(gputest.CmdCopyBufferToImage)
		if len(copies) != 1 || len(copies[0].Copies) != 1 {
			t.Fatalf("CreateTextureImage(%+v): want one copy with one region", x)
		}
		region := copies[0].Copies[0]
		if region.ImageSubresource.LayerCount != x.layers || region.ImageSubresource.MipLevel != 0 {
			t.Errorf("CreateTextureImage(%+v): copy region %+v", x, region.ImageSubresource)
		}
		if n := len(dev.CommandsOf(gputest.CmdBlitImage)); n != 0 {
			t.Errorf("CreateTextureImage(%+v): %d blits for a single level", x, n)
		}
		if n := len(dev.CommandsOf(gputest.CmdBarrier)); n != 1 {
			t.Errorf("CreateTextureImage(%+v): barriers\nhave %d\nwant 1", x, n)
		}

		if len(dev.Buffers) != 1 || dev.Buffers[0].Destroyed != 1 {
			t.Errorf("CreateTextureImage(%+v): staging buffer not destroyed", x)
		}
		image.Destroy()
		memory.Free()
		if n := dev.Live(); n != 0 {
			t.Errorf("CreateTextureImage(%+v): %d objects left alive", x, n)
		}
		checkClean(t, dev)
	}
}

func TestCreateTextureImageStagingOrder(t *testing.T) {
	dev := gputest.NewDevice()
	_, _, _, err := upload(dev, solidLayers(8, 8, 6), 8, 8, 6, true, WithMipRequest(true))
	if err != nil {
		t.Fatalf("CreateTextureImage: %v", err)
	}

	// The staging buffer and its memory are the first objects released,
	// and that happens before the mip chain is submitted.
	if len(dev.Releases) != 2 || dev.Releases[0].Kind != "buffer" || dev.Releases[1].Kind != "memory" {
		t.Fatalf("releases\nhave %+v\nwant staging buffer then memory", dev.Releases)
	}
	if dev.Submits != 3 {
		t.Errorf("submits\nhave %d\nwant 3", dev.Submits)
	}
	checkClean(t, dev)
}

func TestCreateTextureImageMips(t *testing.T) {
	for _, x := range [...]struct {
		name       string
		createMips bool
		opts       []Option
		levels     int
		layout     core1_0.ImageLayout
	}{
		{"default", true, nil, 1, core1_0.ImageLayoutTransferDstOptimal},
		{"no request", false, []Option{WithMipRequest(true)}, 1, core1_0.ImageLayoutTransferDstOptimal},
		{"honored", true, []Option{WithMipRequest(true)}, 6, core1_0.ImageLayoutShaderReadOnlyOptimal},
		{"finalized", true, []Option{WithFinalizeSingleLevel(true)}, 1, core1_0.ImageLayoutShaderReadOnlyOptimal},
		{"all layers", true, []Option{WithMipRequest(true), WithAllLayerMips(true)}, 6, core1_0.ImageLayoutShaderReadOnlyOptimal},
	} {
		dev := gputest.NewDevice()
		image, _, levels, err := upload(dev, solidLayers(32, 32, 6), 32, 32, 6, x.createMips, x.opts...)
		if err != nil {
			t.Fatalf("%s: CreateTextureImage: %v", x.name, err)
		}
		if levels != x.levels {
			t.Errorf("%s: levels\nhave %d\nwant %d", x.name, levels, x.levels)
		}
		if n := len(dev.CommandsOf(gputest.CmdBlitImage)); n != levels-1 {
			t.Errorf("%s: blits\nhave %d\nwant %d", x.name, n, levels-1)
		}
		if got := newOptions(x.opts...).finalLayout(levels); got != x.layout {
			t.Errorf("%s: finalLayout\nhave %v\nwant %v", x.name, got, x.layout)
		}

		img := image.(*gputest.Image)
		for layer := 0; layer < 6; layer++ {
			if got := img.Layout(levels-1, layer); got != x.layout {
				t.Errorf("%s: layer %d last level layout\nhave %v\nwant %v", x.name, layer, got, x.layout)
			}
		}
		if newOptions(x.opts...).AllLayerMips {
			for layer := 0; layer < 6; layer++ {
				if got := img.Read(levels-1, layer); !bytes.Equal(got, layerColor(layer)) {
					t.Errorf("%s: layer %d last level\nhave %v\nwant %v", x.name, layer, got, layerColor(layer))
				}
			}
		}
		checkClean(t, dev)
	}
}

func TestCreateTextureImageInvalid(t *testing.T) {
	for _, x := range [...]struct {
		name                  string
		pixels                []byte
		width, height, layers int
	}{
		{"zero width", nil, 0, 4, 6},
		{"zero height", make([]byte, 64), 4, 0, 6},
		{"negative", make([]byte, 64), -4, 4, 6},
		{"no layers", make([]byte, 64), 4, 4, 0},
		{"empty pixels", nil, 4, 4, 6},
		{"short pixels", make([]byte, 4*4*4*6-1), 4, 4, 6},
		{"negative size", nil, 1 << 30, 1 << 31, 1},
		{"zero size", nil, 1 << 31, 1 << 31, 1},
		{"extent beyond uint32", make([]byte, 64), 1 << 32, 1, 1},
		{"huge layer count", nil, 1 << 20, 1 << 20, 1 << 30},
	} {
		dev := gputest.NewDevice()
		image, memory, levels, err := upload(dev, x.pixels, x.width, x.height, x.layers, true)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: CreateTextureImage\nhave %v\nwant %v", x.name, err, ErrInvalidInput)
		}
		if image != nil || memory != nil || levels != 0 {
			t.Errorf("%s: CreateTextureImage returned results alongside error", x.name)
		}
		if len(dev.Buffers) != 0 || len(dev.Images) != 0 {
			t.Errorf("%s: CreateTextureImage touched the device", x.name)
		}
	}
}

func TestPixelBytes(t *testing.T) {
	for _, x := range [...]struct {
		width, height, layers int
		want                  int
		ok                    bool
	}{
		{1, 1, 1, 4, true},
		{64, 64, 6, 4 * 64 * 64 * 6, true},
		{1 << 16, 1 << 16, 6, 4 << 32 * 6, true},
		{1 << 30, 1 << 31, 1, 0, false},
		{1 << 31, 1 << 31, 1, 0, false},
		{1 << 32, 1, 1, 0, false},
	} {
		got, ok := pixelBytes(x.width, x.height, x.layers)
		if got != x.want || ok != x.ok {
			t.Errorf("pixelBytes(%d, %d, %d)\nhave %d, %v\nwant %d, %v", x.width, x.height, x.layers, got, ok, x.want, x.ok)
		}
	}
}

func TestCreateTextureImageUnsupportedFormat(t *testing.T) {
	dev := gputest.NewDevice()
	dev.DefaultFeatures = core1_0.FormatFeatureSampledImage

	_, _, _, err := upload(dev, solidLayers(8, 8, 6), 8, 8, 6, true, WithMipRequest(true))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("CreateTextureImage\nhave %v\nwant %v", err, ErrUnsupportedFormat)
	}
	if len(dev.Buffers) != 0 || len(dev.Images) != 0 {
		t.Error("CreateTextureImage created objects for an unsupported format")
	}

	// A single level never blits, so the format check does not apply.
	if _, _, _, err := upload(dev, solidLayers(8, 8, 6), 8, 8, 6, true); err != nil {
		t.Errorf("CreateTextureImage single level: unexpected error: %v", err)
	}
}

func TestCreateTextureImageFailures(t *testing.T) {
	for op := gputest.OpCreateImage; op <= gputest.OpBlitImage; op++ {
		for after := 0; after < 3; after++ {
			dev := gputest.NewDevice()
			dev.FailOn(op, after)

			image, memory, _, err := upload(dev, solidLayers(8, 8, 6), 8, 8, 6, true,
				WithMipRequest(true), WithAllLayerMips(after%2 == 1))
			if err == nil {
				image.Destroy()
				memory.Free()
			} else if !errors.Is(err, gpu.ErrDevice) {
				t.Errorf("failing %s after %d: error %v is not a device error", op, after, err)
			}
			if n := dev.Live(); n != 0 {
				t.Errorf("failing %s after %d: %d objects left alive", op, after, n)
			}
			checkClean(t, dev)
		}
	}
}
