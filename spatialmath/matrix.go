package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// CrossMat returns the skew-symmetric matrix v× satisfying (v×)·w = v × w.
func CrossMat(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0, -v.Z(), v.Y()},
		mgl64.Vec3{v.Z(), 0, -v.X()},
		mgl64.Vec3{-v.Y(), v.X(), 0},
	)
}

// OrthoTransform returns the orthogonal similarity transform r·m·rᵀ,
// re-expressing the symmetric operator m in the frame rotated by r.
func OrthoTransform(m, r mgl64.Mat3) mgl64.Mat3 {
	return r.Mul3(m).Mul3(r.Transpose())
}

// BlockMat22 assembles a 6x6 dense matrix from four 3x3 blocks.
func BlockMat22(m11, m12, m21, m22 mgl64.Mat3) *mat.Dense {
	out := mat.NewDense(6, 6, nil)
	SetBlock(out, 0, 0, m11)
	SetBlock(out, 0, 3, m12)
	SetBlock(out, 3, 0, m21)
	SetBlock(out, 3, 3, m22)
	return out
}

// Block reads the 3x3 block of m whose upper-left corner is (row, col).
func Block(m mat.Matrix, row, col int) mgl64.Mat3 {
	var b mgl64.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b.Set(i, j, m.At(row+i, col+j))
		}
	}
	return b
}

// SetBlock writes the 3x3 block b into m with its upper-left corner at (row, col).
func SetBlock(m *mat.Dense, row, col int, b mgl64.Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(row+i, col+j, b.At(i, j))
		}
	}
}

// AddBlock adds the 3x3 block b into m at (row, col).
func AddBlock(m *mat.Dense, row, col int, b mgl64.Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(row+i, col+j, m.At(row+i, col+j)+b.At(i, j))
		}
	}
}

// SetRow3 writes a 3-vector into columns col..col+2 of row r of m.
func SetRow3(m *mat.Dense, r, col int, v mgl64.Vec3) {
	m.Set(r, col, v.X())
	m.Set(r, col+1, v.Y())
	m.Set(r, col+2, v.Z())
}
