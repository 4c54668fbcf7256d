package geometry

import (
	"math"
)

// bilateralFilter smooths noise while keeping edges: each output pixel is a
// weighted mean of its d x d neighborhood, with weights combining spatial
// distance and intensity difference. Parameters follow the denoising pass
// applied before contrast enhancement (d=7, sigma 30 for both domains).
func bilateralFilter(src *grayMat, d int, sigmaColor, sigmaSpace float64) *grayMat {
	radius := d / 2

	// Precompute the spatial kernel and a lookup table for the 256 possible
	// intensity differences.
	spatial := make([]float64, d*d)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			dd := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*d+(dx+radius)] = math.Exp(-dd / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var colorLUT [256]float64
	for i := range colorLUT {
		colorLUT[i] = math.Exp(-float64(i*i) / (2 * sigmaColor * sigmaColor))
	}

	dst := newGrayMat(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			center := int(src.at(x, y))
			var sum, weight float64
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					v := int(src.atClamped(x+dx, y+dy))
					w := spatial[(dy+radius)*d+(dx+radius)] * colorLUT[abs(v-center)]
					sum += w * float64(v)
					weight += w
				}
			}
			dst.set(x, y, uint8(math.Round(sum/weight)))
		}
	}
	return dst
}

// clahe applies contrast-limited adaptive histogram equalization over a
// tilesX x tilesY grid. Each tile's histogram is clipped at clipLimit times
// the uniform bin height, the excess redistributed, and per-pixel values
// are mapped through bilinear interpolation of the four surrounding tile
// LUTs to avoid visible tile seams.
func clahe(src *grayMat, clipLimit float64, tilesX, tilesY int) *grayMat {
	w, h := src.W, src.H
	if w < tilesX || h < tilesY {
		return src
	}
	tileW := (w + tilesX - 1) / tilesX
	tileH := (h + tilesY - 1) / tilesY

	// Per-tile clipped-equalization lookup tables.
	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)

			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[src.at(x, y)]++
				}
			}
			n := (x1 - x0) * (y1 - y0)

			clip := int(clipLimit * float64(n) / 256)
			if clip < 1 {
				clip = 1
			}
			excess := 0
			for i := range hist {
				if hist[i] > clip {
					excess += hist[i] - clip
					hist[i] = clip
				}
			}
			// Redistribute clipped counts: a uniform share to every bin,
			// the remainder spread at a constant stride so the CDF is not
			// front-loaded into the dark bins.
			share := excess / 256
			for i := range hist {
				hist[i] += share
			}
			if rem := excess % 256; rem > 0 {
				step := 256 / rem
				if step < 1 {
					step = 1
				}
				for i := 0; i < 256 && rem > 0; i += step {
					hist[i]++
					rem--
				}
			}

			cum := 0
			for i := range hist {
				cum += hist[i]
				luts[ty*tilesX+tx][i] = uint8(math.Round(float64(cum) * 255 / float64(n)))
			}
		}
	}

	lutAt := func(tx, ty int) *[256]uint8 {
		tx = min(max(tx, 0), tilesX-1)
		ty = min(max(ty, 0), tilesY-1)
		return &luts[ty*tilesX+tx]
	}

	dst := newGrayMat(w, h)
	for y := 0; y < h; y++ {
		// Position relative to tile centers, for interpolation.
		gy := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := int(math.Floor(gy))
		fy := gy - float64(ty0)
		for x := 0; x < w; x++ {
			gx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := int(math.Floor(gx))
			fx := gx - float64(tx0)

			v := src.at(x, y)
			v00 := float64(lutAt(tx0, ty0)[v])
			v10 := float64(lutAt(tx0+1, ty0)[v])
			v01 := float64(lutAt(tx0, ty0+1)[v])
			v11 := float64(lutAt(tx0+1, ty0+1)[v])
			top := v00*(1-fx) + v10*fx
			bot := v01*(1-fx) + v11*fx
			dst.set(x, y, uint8(math.Round(top*(1-fy)+bot*fy)))
		}
	}
	return dst
}
