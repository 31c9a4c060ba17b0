// Package cubeface knows the six faces of a cube map: their canonical order
// and file names, how to decode a face set from disk into one contiguous
// RGBA8 buffer, and how a direction vector maps onto a face texel.
package cubeface

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Face is a cube map face. Its value is the array layer the face occupies.
type Face int

const (
	PositiveX Face = iota
	NegativeX
	PositiveY
	NegativeY
	PositiveZ
	NegativeZ
)

// Count is the number of faces, and so the layer count of a cube image.
const Count = 6

// All lists every face in layer order.
var All = [Count]Face{PositiveX, NegativeX, PositiveY, NegativeY, PositiveZ, NegativeZ}

// Filenames holds the file each face is loaded from, in layer order.
var Filenames = [Count]string{
	"right.jpg",
	"left.jpg",
	"top.jpg",
	"bottom.jpg",
	"front.jpg",
	"back.jpg",
}

var faceNames = [Count]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

func (f Face) String() string {
	if f < 0 || f >= Count {
		return fmt.Sprintf("Face(%d)", int(f))
	}
	return faceNames[f]
}

func (f Face) Filename() string {
	return Filenames[f]
}

var directions = [Count]mgl32.Vec3{
	{1, 0, 0},
	{-1, 0, 0},
	{0, 1, 0},
	{0, -1, 0},
	{0, 0, 1},
	{0, 0, -1},
}

var ups = [Count]mgl32.Vec3{
	{0, -1, 0},
	{0, -1, 0},
	{0, 0, 1},
	{0, 0, -1},
	{0, -1, 0},
	{0, -1, 0},
}

// Direction is the unit vector pointing at the center of the face.
func (f Face) Direction() mgl32.Vec3 {
	return directions[f]
}

// Up is the up vector used when rendering into the face.
func (f Face) Up() mgl32.Vec3 {
	return ups[f]
}

// ViewMatrix returns the view transform that looks from eye through the
// center of the face. Paired with a 90 degree square projection it covers
// exactly the face.
func (f Face) ViewMatrix(eye mgl32.Vec3) mgl32.Mat4 {
	return mgl32.LookAtV(eye, eye.Add(f.Direction()), f.Up())
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// FaceOf selects the face a direction points at using the major axis rule
// and returns the normalized texel coordinates s, t in [0, 1] on that face.
// The zero vector maps to the center of PositiveX.
func FaceOf(dir mgl32.Vec3) (face Face, s, t float32) {
	x, y, z := dir.X(), dir.Y(), dir.Z()
	ax, ay, az := abs(x), abs(y), abs(z)

	var sc, tc, ma float32
	switch {
	case ax == 0 && ay == 0 && az == 0:
		return PositiveX, 0.5, 0.5
	case ax >= ay && ax >= az:
		ma = ax
		tc = -y
		if x >= 0 {
			face, sc = PositiveX, -z
		} else {
			face, sc = NegativeX, z
		}
	case ay >= az:
		ma = ay
		sc = x
		if y >= 0 {
			face, tc = PositiveY, z
		} else {
			face, tc = NegativeY, -z
		}
	default:
		ma = az
		tc = -y
		if z >= 0 {
			face, sc = PositiveZ, x
		} else {
			face, sc = NegativeZ, -x
		}
	}

	s = (sc/ma + 1) / 2
	t = (tc/ma + 1) / 2
	return face, s, t
}
