package geometry

import (
	"math"
	"sort"
)

// fpoint is an internal float point used by the hull/calipers math.
type fpoint struct {
	X, Y float64
}

// connectedComponents groups set pixels of a binary matrix into
// 8-connected components and returns each component's pixel list.
func connectedComponents(bin *grayMat) [][]fpoint {
	w, h := bin.W, bin.H
	visited := make([]bool, w*h)
	var comps [][]fpoint

	for start := 0; start < w*h; start++ {
		if bin.Pix[start] == 0 || visited[start] {
			continue
		}
		var comp []fpoint
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			comp = append(comp, fpoint{float64(x), float64(y)})
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if bin.Pix[j] != 0 && !visited[j] {
						visited[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// convexHull returns the convex hull in counter-clockwise order
// (Andrew's monotone chain).
func convexHull(pts []fpoint) []fpoint {
	if len(pts) < 3 {
		return append([]fpoint(nil), pts...)
	}
	sorted := append([]fpoint(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b fpoint) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower, upper []fpoint
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// polygonArea returns the absolute area of a closed polygon.
func polygonArea(poly []fpoint) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(sum) / 2
}

// polygonPerimeter returns the closed perimeter length of a polygon.
func polygonPerimeter(poly []fpoint) float64 {
	if len(poly) < 2 {
		return 0
	}
	sum := 0.0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += math.Hypot(poly[j].X-poly[i].X, poly[j].Y-poly[i].Y)
	}
	return sum
}

// approxPolyClosed simplifies a closed polygon with the Douglas-Peucker
// algorithm. epsilon is an absolute distance; callers derive it as a
// fraction of the perimeter.
func approxPolyClosed(poly []fpoint, epsilon float64) []fpoint {
	if len(poly) < 3 {
		return append([]fpoint(nil), poly...)
	}

	// Split the ring at the two mutually farthest vertices so each half can
	// be simplified as an open chain.
	ai, bi := 0, 0
	best := -1.0
	for i := range poly {
		for j := i + 1; j < len(poly); j++ {
			d := math.Hypot(poly[j].X-poly[i].X, poly[j].Y-poly[i].Y)
			if d > best {
				best, ai, bi = d, i, j
			}
		}
	}

	chainA := ringSlice(poly, ai, bi)
	chainB := ringSlice(poly, bi, ai)
	simpA := douglasPeucker(chainA, epsilon)
	simpB := douglasPeucker(chainB, epsilon)

	// Merge, dropping the duplicated endpoints.
	out := append([]fpoint(nil), simpA...)
	if len(simpB) > 2 {
		out = append(out, simpB[1:len(simpB)-1]...)
	}
	return out
}

// ringSlice returns poly[i..j] walking forward around the ring, inclusive.
func ringSlice(poly []fpoint, i, j int) []fpoint {
	var out []fpoint
	for k := i; ; k = (k + 1) % len(poly) {
		out = append(out, poly[k])
		if k == j {
			break
		}
	}
	return out
}

func douglasPeucker(chain []fpoint, epsilon float64) []fpoint {
	if len(chain) < 3 {
		return append([]fpoint(nil), chain...)
	}
	maxDist := -1.0
	maxIdx := 0
	a, b := chain[0], chain[len(chain)-1]
	for i := 1; i < len(chain)-1; i++ {
		d := perpendicularDistance(chain[i], a, b)
		if d > maxDist {
			maxDist, maxIdx = d, i
		}
	}
	if maxDist <= epsilon {
		return []fpoint{a, b}
	}
	left := douglasPeucker(chain[:maxIdx+1], epsilon)
	right := douglasPeucker(chain[maxIdx:], epsilon)
	return append(left[:len(left)-1], right...)
}

func perpendicularDistance(p, a, b fpoint) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	return math.Abs(dx*(a.Y-p.Y)-(a.X-p.X)*dy) / l
}

// minAreaRect computes the minimum-area rotated bounding rectangle of a
// convex hull (rotating calipers) and returns its four corner points plus
// the rectangle's rotation angle in degrees.
func minAreaRect(hull []fpoint) ([4]fpoint, float64) {
	var box [4]fpoint
	if len(hull) == 0 {
		return box, 0
	}
	if len(hull) == 1 {
		return [4]fpoint{hull[0], hull[0], hull[0], hull[0]}, 0
	}

	bestArea := math.Inf(1)
	bestAngle := 0.0
	for i := range hull {
		j := (i + 1) % len(hull)
		theta := math.Atan2(hull[j].Y-hull[i].Y, hull[j].X-hull[i].X)
		cos, sin := math.Cos(theta), math.Sin(theta)

		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			// rotate by -theta
			rx := p.X*cos + p.Y*sin
			ry := -p.X*sin + p.Y*cos
			minX, maxX = math.Min(minX, rx), math.Max(maxX, rx)
			minY, maxY = math.Min(minY, ry), math.Max(maxY, ry)
		}
		area := (maxX - minX) * (maxY - minY)
		if area < bestArea {
			bestArea = area
			bestAngle = theta
			corners := [4]fpoint{
				{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY},
			}
			for k, c := range corners {
				// rotate back by +theta
				box[k] = fpoint{
					X: c.X*cos - c.Y*sin,
					Y: c.X*sin + c.Y*cos,
				}
			}
		}
	}
	return box, bestAngle * 180 / math.Pi
}
