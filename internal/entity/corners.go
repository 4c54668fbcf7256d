package entity

import "math"

// Point is a 2D pixel coordinate. Float to keep sub-pixel precision coming
// out of the contour math.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DocumentCorners are the four corners of a document detected in a photo,
// in clockwise reading order starting at top-left.
type DocumentCorners struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// Points returns the corners in top-left, top-right, bottom-right,
// bottom-left order.
func (c DocumentCorners) Points() [4]Point {
	return [4]Point{c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft}
}

// MinSeparation returns the smallest pairwise distance between corners.
// Corners closer than ~10px usually mean the detection collapsed; the
// caller logs this but still proceeds.
func (c DocumentCorners) MinSeparation() float64 {
	pts := c.Points()
	best := math.Inf(1)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			dx := pts[i].X - pts[j].X
			dy := pts[i].Y - pts[j].Y
			if d := math.Hypot(dx, dy); d < best {
				best = d
			}
		}
	}
	return best
}
