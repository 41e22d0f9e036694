package filter

import (
	"image"
	"math"
	"sort"

	"github.com/feichai0017/document-extractor/internal/raster"
)

// Point is a position in raster coordinates (x right, y down).
type Point struct {
	X, Y float64
}

// RotatedRect is the minimum-area rectangle enclosing a point set.
// Angle is the on-screen counter-clockwise angle of the Width edge in
// degrees, normalised to [-90, 0). An axis-aligned rectangle reports -90.
type RotatedRect struct {
	Center Point
	Width  float64
	Height float64
	Angle  float64
}

// ForegroundPoints returns the coordinates of every pixel with a non-zero sample.
func ForegroundPoints(r *raster.Raster) []image.Point {
	var pts []image.Point
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			if foreground(r, x, y) {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// RowExtremes returns the leftmost and rightmost foreground pixel of each
// row. Every foreground pixel lies between the two extremes of its row, so
// the result has the same convex hull as ForegroundPoints with at most
// 2*Height points.
func RowExtremes(r *raster.Raster) []image.Point {
	var pts []image.Point
	for y := 0; y < r.Height; y++ {
		left := -1
		for x := 0; x < r.Width; x++ {
			if foreground(r, x, y) {
				left = x
				break
			}
		}
		if left < 0 {
			continue
		}
		pts = append(pts, image.Point{X: left, Y: y})
		for x := r.Width - 1; x > left; x-- {
			if foreground(r, x, y) {
				pts = append(pts, image.Point{X: x, Y: y})
				break
			}
		}
	}
	return pts
}

func foreground(r *raster.Raster, x, y int) bool {
	off := (y*r.Width + x) * r.Channels
	for _, v := range r.Pix[off : off+r.Channels] {
		if v > 0 {
			return true
		}
	}
	return false
}

// MinAreaRect finds the smallest rectangle, at any rotation, enclosing pts.
// The search walks every edge of the convex hull since the optimal rectangle
// shares a side with it.
func MinAreaRect(pts []image.Point) (RotatedRect, error) {
	if len(pts) == 0 {
		return RotatedRect{}, ErrEmptyRaster
	}

	hull := convexHull(pts)
	if len(hull) == 1 {
		p := hull[0]
		return RotatedRect{Center: Point{float64(p.X), float64(p.Y)}, Angle: -90}, nil
	}

	best := RotatedRect{}
	bestArea := math.Inf(1)
	n := len(hull)
	for i := 0; i < n; i++ {
		p0, p1 := hull[i], hull[(i+1)%n]
		ex, ey := float64(p1.X-p0.X), float64(p1.Y-p0.Y)
		length := math.Hypot(ex, ey)
		if length == 0 {
			continue
		}
		ux, uy := ex/length, ey/length
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, q := range hull {
			dx, dy := float64(q.X-p0.X), float64(q.Y-p0.Y)
			u := dx*ux + dy*uy
			v := dx*vx + dy*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea-1e-9 {
			bestArea = area
			mu, mv := (minU+maxU)/2, (minV+maxV)/2
			best = RotatedRect{
				Center: Point{
					X: float64(p0.X) + mu*ux + mv*vx,
					Y: float64(p0.Y) + mu*uy + mv*vy,
				},
				Width:  maxU - minU,
				Height: maxV - minV,
				// y grows downward, so flip it for the on-screen angle
				Angle: normalizeAngle(math.Atan2(-ey, ex) * 180 / math.Pi),
			}
		}
	}
	return best, nil
}

// normalizeAngle folds a line angle into [-90, 0).
func normalizeAngle(deg float64) float64 {
	t := math.Mod(deg, 90)
	if t >= 0 {
		t -= 90
	}
	return t
}

// convexHull returns the hull of pts in order, without collinear points.
func convexHull(pts []image.Point) []image.Point {
	sorted := append([]image.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	uniq := sorted[:1]
	for _, p := range sorted[1:] {
		if p != uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}

	cross := func(o, a, b image.Point) int64 {
		return int64(a.X-o.X)*int64(b.Y-o.Y) - int64(a.Y-o.Y)*int64(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// DetectSkew returns the rotation in degrees (counter-clockwise positive) that
// straightens the foreground of r. It fails with ErrEmptyRaster when r has no
// foreground pixels.
func DetectSkew(r *raster.Raster) (float64, error) {
	if err := check(r); err != nil {
		return 0, err
	}
	rect, err := MinAreaRect(RowExtremes(r))
	if err != nil {
		return 0, err
	}
	if rect.Angle < -45 {
		return -(90 + rect.Angle), nil
	}
	return -rect.Angle, nil
}

// CorrectSkew rotates r about its centre by the angle DetectSkew reports,
// keeping the original size, with bicubic sampling and replicated borders.
func CorrectSkew(r *raster.Raster) (*raster.Raster, error) {
	angle, err := DetectSkew(r)
	if err != nil {
		return nil, err
	}
	center := Point{X: float64(r.Width / 2), Y: float64(r.Height / 2)}
	return WarpAffine(r, RotationMatrix(center, angle, 1), r.Width, r.Height)
}

// Affine is a 2x3 matrix mapping source to destination coordinates:
// x' = M[0]x + M[1]y + M[2], y' = M[3]x + M[4]y + M[5].
type Affine [6]float64

// RotationMatrix builds the affine transform rotating by angle degrees
// counter-clockwise on screen about center, scaled by scale.
func RotationMatrix(center Point, angle, scale float64) Affine {
	rad := angle * math.Pi / 180
	alpha := scale * math.Cos(rad)
	beta := scale * math.Sin(rad)
	return Affine{
		alpha, beta, (1-alpha)*center.X - beta*center.Y,
		-beta, alpha, beta*center.X + (1-alpha)*center.Y,
	}
}

// Invert returns the inverse transform. A singular matrix yields the zero matrix.
func (m Affine) Invert() Affine {
	d := m[0]*m[4] - m[1]*m[3]
	if d == 0 {
		return Affine{}
	}
	d = 1 / d
	a11, a22 := m[4]*d, m[0]*d
	a12, a21 := -m[1]*d, -m[3]*d
	return Affine{
		a11, a12, -a11*m[2] - a12*m[5],
		a21, a22, -a21*m[2] - a22*m[5],
	}
}

// WarpAffine maps r through m into a width x height raster. Each destination
// pixel samples the source at the inverse-mapped position with bicubic
// interpolation; positions outside the source replicate the nearest edge.
func WarpAffine(r *raster.Raster, m Affine, width, height int) (*raster.Raster, error) {
	if err := check(r); err != nil {
		return nil, err
	}
	out, err := raster.New(width, height, r.Channels)
	if err != nil {
		return nil, err
	}

	inv := m.Invert()
	w, h, ch := r.Width, r.Height, r.Channels
	var cx, cy [4]float64
	var acc [3]float64

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx := inv[0]*float64(x) + inv[1]*float64(y) + inv[2]
			sy := inv[3]*float64(x) + inv[4]*float64(y) + inv[5]
			ix, iy := math.Floor(sx), math.Floor(sy)
			cubicCoeffs(sx-ix, &cx)
			cubicCoeffs(sy-iy, &cy)
			x0, y0 := int(ix)-1, int(iy)-1

			acc = [3]float64{}
			for j := 0; j < 4; j++ {
				row := clamp(y0+j, 0, h-1) * w
				for i := 0; i < 4; i++ {
					wgt := cx[i] * cy[j]
					off := (row + clamp(x0+i, 0, w-1)) * ch
					for c := 0; c < ch; c++ {
						acc[c] += wgt * float64(r.Pix[off+c])
					}
				}
			}

			dst := (y*width + x) * ch
			for c := 0; c < ch; c++ {
				out.Pix[dst+c] = saturate(acc[c])
			}
		}
	}
	return out, nil
}

// cubicCoeffs fills the four Keys cubic weights (A = -0.75) for fraction t.
func cubicCoeffs(t float64, c *[4]float64) {
	const a = -0.75
	c[0] = ((a*(t+1)-5*a)*(t+1)+8*a)*(t+1) - 4*a
	c[1] = ((a+2)*t-(a+3))*t*t + 1
	c[2] = ((a+2)*(1-t)-(a+3))*(1-t)*(1-t) + 1
	c[3] = 1 - c[0] - c[1] - c[2]
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
