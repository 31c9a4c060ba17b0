package gputest

import (
	"github.com/vkngwrapper/core/v3/core1_0"
)

func (d *Device) execute(cmd Command) {
	switch cmd.Kind {
	case CmdBarrier:
		for _, barrier := range cmd.Barriers {
			d.executeBarrier(barrier.Image, barrier.OldLayout, barrier.NewLayout, barrier.SubresourceRange)
		}
	case CmdCopyBufferToImage:
		for _, region := range cmd.Copies {
			d.executeCopy(cmd.Buffer, cmd.DstImage, cmd.DstLayout, region)
		}
	case CmdBlitImage:
		for _, region := range cmd.Blits {
			d.executeBlit(cmd, region)
		}
	}
}

func (d *Device) usable(image *Image) bool {
	if image.Destroyed > 0 {
		d.violate("image %d used after destroy", image.ID)
		return false
	}
	if image.planes == nil {
		d.violate("image %d used without bound memory", image.ID)
		return false
	}
	return true
}

func (d *Device) executeBarrier(img interface{}, oldLayout, newLayout core1_0.ImageLayout, r core1_0.ImageSubresourceRange) {
	image, ok := img.(*Image)
	if !ok {
		d.violate("barrier on foreign image %T", img)
		return
	}
	if !d.usable(image) {
		return
	}

	for level := r.BaseMipLevel; level < r.BaseMipLevel+r.LevelCount; level++ {
		for layer := r.BaseArrayLayer; layer < r.BaseArrayLayer+r.LayerCount; layer++ {
			if !image.contains(level, layer) {
				d.violate("barrier on image %d outside level %d layer %d", image.ID, level, layer)
				continue
			}
			idx := image.index(level, layer)
			if oldLayout != core1_0.ImageLayoutUndefined && image.layouts[idx] != oldLayout {
				d.violate("barrier on image %d level %d layer %d expects layout %v, found %v",
					image.ID, level, layer, oldLayout, image.layouts[idx])
			}
			image.layouts[idx] = newLayout
		}
	}
}

func (d *Device) expectLayout(image *Image, level, layer int, want core1_0.ImageLayout, what string) {
	if got := image.layouts[image.index(level, layer)]; got != want {
		d.violate("%s on image %d level %d layer %d in layout %v, want %v", what, image.ID, level, layer, got, want)
	}
}

func (d *Device) executeCopy(buffer *Buffer, image *Image, dstLayout core1_0.ImageLayout, region core1_0.BufferImageCopy) {
	if buffer.Destroyed > 0 {
		d.violate("buffer %d used after destroy", buffer.ID)
		return
	}
	if !d.usable(image) {
		return
	}
	if dstLayout != core1_0.ImageLayoutTransferDstOptimal {
		d.violate("copy into image %d with layout %v", image.ID, dstLayout)
	}

	src := buffer.Contents()
	sub := region.ImageSubresource
	extent := region.ImageExtent
	rowLength := region.BufferRowLength
	if rowLength == 0 {
		rowLength = extent.Width
	}
	imageHeight := region.BufferImageHeight
	if imageHeight == 0 {
		imageHeight = extent.Height
	}
	layerStride := rowLength * imageHeight * 4

	for k := 0; k < sub.LayerCount; k++ {
		layer := sub.BaseArrayLayer + k
		if !image.contains(sub.MipLevel, layer) {
			d.violate("copy into image %d outside level %d layer %d", image.ID, sub.MipLevel, layer)
			continue
		}
		d.expectLayout(image, sub.MipLevel, layer, dstLayout, "copy")

		levelWidth, levelHeight := image.LevelExtent(sub.MipLevel)
		if region.ImageOffset.X+extent.Width > levelWidth || region.ImageOffset.Y+extent.Height > levelHeight {
			d.violate("copy extent %+v exceeds image %d level %d", extent, image.ID, sub.MipLevel)
			continue
		}

		plane := image.planes[image.index(sub.MipLevel, layer)]
		for y := 0; y < extent.Height; y++ {
			srcStart := region.BufferOffset + k*layerStride + y*rowLength*4
			srcEnd := srcStart + extent.Width*4
			if srcEnd > len(src) {
				d.violate("copy reads past end of buffer %d (%d > %d)", buffer.ID, srcEnd, len(src))
				return
			}
			dstStart := ((region.ImageOffset.Y+y)*levelWidth + region.ImageOffset.X) * 4
			copy(plane[dstStart:dstStart+extent.Width*4], src[srcStart:srcEnd])
		}
	}
}

func (d *Device) executeBlit(cmd Command, region core1_0.ImageBlit) {
	if !d.usable(cmd.SrcImage) || !d.usable(cmd.DstImage) {
		return
	}
	if cmd.SrcLayout != core1_0.ImageLayoutTransferSrcOptimal || cmd.DstLayout != core1_0.ImageLayoutTransferDstOptimal {
		d.violate("blit with layouts %v -> %v", cmd.SrcLayout, cmd.DstLayout)
	}

	srcSub, dstSub := region.SrcSubresource, region.DstSubresource
	if srcSub.LayerCount != dstSub.LayerCount {
		d.violate("blit layer count mismatch %d != %d", srcSub.LayerCount, dstSub.LayerCount)
		return
	}

	src0, src1 := region.SrcOffsets[0], region.SrcOffsets[1]
	dst0, dst1 := region.DstOffsets[0], region.DstOffsets[1]
	srcW, srcH := src1.X-src0.X, src1.Y-src0.Y
	dstW, dstH := dst1.X-dst0.X, dst1.Y-dst0.Y
	if srcW < 1 || srcH < 1 || dstW < 1 || dstH < 1 {
		d.violate("blit with empty region %+v", region)
		return
	}

	for k := 0; k < srcSub.LayerCount; k++ {
		srcLayer, dstLayer := srcSub.BaseArrayLayer+k, dstSub.BaseArrayLayer+k
		if !cmd.SrcImage.contains(srcSub.MipLevel, srcLayer) || !cmd.DstImage.contains(dstSub.MipLevel, dstLayer) {
			d.violate("blit outside image bounds: %+v", region)
			return
		}
		if cmd.SrcImage == cmd.DstImage && srcSub.MipLevel == dstSub.MipLevel && srcLayer == dstLayer {
			d.violate("blit source and destination overlap")
		}
		d.expectLayout(cmd.SrcImage, srcSub.MipLevel, srcLayer, cmd.SrcLayout, "blit source")
		d.expectLayout(cmd.DstImage, dstSub.MipLevel, dstLayer, cmd.DstLayout, "blit destination")

		srcLevelW, srcLevelH := cmd.SrcImage.LevelExtent(srcSub.MipLevel)
		dstLevelW, dstLevelH := cmd.DstImage.LevelExtent(dstSub.MipLevel)
		if src1.X > srcLevelW || src1.Y > srcLevelH || dst1.X > dstLevelW || dst1.Y > dstLevelH {
			d.violate("blit region %+v exceeds level extents", region)
			return
		}

		srcPlane := cmd.SrcImage.planes[cmd.SrcImage.index(srcSub.MipLevel, srcLayer)]
		dstPlane := cmd.DstImage.planes[cmd.DstImage.index(dstSub.MipLevel, dstLayer)]
		boxFilter(srcPlane, srcLevelW, src0.X, src0.Y, srcW, srcH, dstPlane, dstLevelW, dst0.X, dst0.Y, dstW, dstH)
	}
}

// boxFilter averages the source texels covered by each destination texel.
func boxFilter(src []byte, srcStride, sx, sy, sw, sh int, dst []byte, dstStride, dx, dy, dw, dh int) {
	for y := 0; y < dh; y++ {
		y0 := y * sh / dh
		y1 := (y + 1) * sh / dh
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < dw; x++ {
			x0 := x * sw / dw
			x1 := (x + 1) * sw / dw
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sum [4]int
			n := 0
			for yy := y0; yy < y1; yy++ {
				for xx := x0; xx < x1; xx++ {
					p := ((sy+yy)*srcStride + sx + xx) * 4
					for c := 0; c < 4; c++ {
						sum[c] += int(src[p+c])
					}
					n++
				}
			}

			p := ((dy+y)*dstStride + dx + x) * 4
			for c := 0; c < 4; c++ {
				dst[p+c] = byte(sum[c] / n)
			}
		}
	}
}
