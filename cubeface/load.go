package cubeface

import (
	"context"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrFace marks errors caused by a face file that is missing, cannot be
// decoded or does not match the size of the first face.
var ErrFace = errors.New("bad cube face")

// Faces is a decoded cube face set: six straight (non-premultiplied) RGBA8
// images of Width x Height texels stored back to back in layer order.
type Faces struct {
	Pixels []byte
	Width  int
	Height int
}

// FaceSize is the byte size of a single face.
func (f Faces) FaceSize() int {
	return 4 * f.Width * f.Height
}

// Face returns the pixels of one face. The slice aliases f.Pixels.
func (f Faces) Face(face Face) []byte {
	size := f.FaceSize()
	return f.Pixels[int(face)*size : (int(face)+1)*size]
}

// At returns the texel at column x, row y of a face.
func (f Faces) At(face Face, x, y int) color.NRGBA {
	p := f.Face(face)[(y*f.Width+x)*4:]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Sample returns the texel nearest to where dir meets the cube.
func (f Faces) Sample(dir mgl32.Vec3) (Face, color.NRGBA) {
	face, s, t := FaceOf(dir)
	x := clamp(int(s*float32(f.Width)), f.Width-1)
	y := clamp(int(t*float32(f.Height)), f.Height-1)
	return face, f.At(face, x, y)
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// Load decodes the six canonical face files in dir.
func Load(dir string) (Faces, error) {
	return LoadContext(context.Background(), dir)
}

// LoadContext decodes the six canonical face files in dir concurrently and
// concatenates them in layer order. The first face fixes the expected size;
// any face of another size is rejected.
func LoadContext(ctx context.Context, dir string) (Faces, error) {
	var decoded [Count]*image.NRGBA

	g, ctx := errgroup.WithContext(ctx)
	for _, face := range All {
		face := face
		g.Go(func() error {
			img, err := decodeFace(ctx, filepath.Join(dir, face.Filename()))
			if err != nil {
				return errors.Wrapf(err, "face %s", face)
			}
			decoded[face] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Faces{}, err
	}

	size := decoded[PositiveX].Rect.Size()
	if size.X < 1 || size.Y < 1 {
		return Faces{}, errors.Mark(errors.Newf("face %s is empty", PositiveX), ErrFace)
	}

	faces := Faces{Width: size.X, Height: size.Y}
	faces.Pixels = make([]byte, 0, Count*faces.FaceSize())
	for _, face := range All {
		img := decoded[face]
		if got := img.Rect.Size(); got != size {
			return Faces{}, errors.Mark(errors.Newf("face %s is %dx%d, expected %dx%d",
				face, got.X, got.Y, size.X, size.Y), ErrFace)
		}
		faces.Pixels = append(faces.Pixels, img.Pix[:faces.FaceSize()]...)
	}

	return faces, nil
}

func decodeFace(ctx context.Context, path string) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(err, ErrFace)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode %s", path), ErrFace)
	}

	return toNRGBA(img), nil
}

// toNRGBA returns img as a tightly packed non-premultiplied RGBA image with
// its origin at 0,0.
func toNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) && nrgba.Stride == 4*bounds.Dx() {
		return nrgba
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Rect, img, bounds.Min, draw.Src)
	return nrgba
}
