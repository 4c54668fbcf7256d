package geometry

// Canny edge detection: Sobel gradients, non-maximum suppression, double
// threshold with hysteresis. Output is a binary matrix (0 or 255).
func canny(src *grayMat, lowThreshold, highThreshold int) *grayMat {
	w, h := src.W, src.H
	mag := make([]int, w*h)
	dir := make([]uint8, w*h) // quantized direction: 0=E/W, 1=NE/SW, 2=N/S, 3=NW/SE

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := -int(src.atClamped(x-1, y-1)) + int(src.atClamped(x+1, y-1)) +
				-2*int(src.atClamped(x-1, y)) + 2*int(src.atClamped(x+1, y)) +
				-int(src.atClamped(x-1, y+1)) + int(src.atClamped(x+1, y+1))
			gy := -int(src.atClamped(x-1, y-1)) - 2*int(src.atClamped(x, y-1)) - int(src.atClamped(x+1, y-1)) +
				int(src.atClamped(x-1, y+1)) + 2*int(src.atClamped(x, y+1)) + int(src.atClamped(x+1, y+1))

			m := abs(gx) + abs(gy)
			mag[y*w+x] = m
			dir[y*w+x] = quantizeDirection(gx, gy)
		}
	}

	// Non-maximum suppression along the gradient direction.
	nms := make([]int, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			var a, b int
			switch dir[i] {
			case 0: // horizontal gradient, compare east/west
				a, b = mag[i-1], mag[i+1]
			case 1: // diagonal /
				a, b = mag[(y-1)*w+x+1], mag[(y+1)*w+x-1]
			case 2: // vertical gradient, compare north/south
				a, b = mag[(y-1)*w+x], mag[(y+1)*w+x]
			default: // diagonal \
				a, b = mag[(y-1)*w+x-1], mag[(y+1)*w+x+1]
			}
			if m >= a && m >= b {
				nms[i] = m
			}
		}
	}

	// Double threshold + hysteresis: weak edges survive only when connected
	// to a strong edge (8-connectivity).
	const (
		weak   = 1
		strong = 2
	)
	labels := make([]uint8, w*h)
	var stack []int
	for i, m := range nms {
		if m >= highThreshold {
			labels[i] = strong
			stack = append(stack, i)
		} else if m >= lowThreshold {
			labels[i] = weak
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if labels[j] == weak {
					labels[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	dst := newGrayMat(w, h)
	for i, l := range labels {
		if l == strong {
			dst.Pix[i] = 255
		}
	}
	return dst
}

func quantizeDirection(gx, gy int) uint8 {
	ax, ay := abs(gx), abs(gy)
	// tan(22.5°) ≈ 0.4142 ≈ 53/128
	if ay*128 <= ax*53 {
		return 0
	}
	if ax*128 <= ay*53 {
		return 2
	}
	if (gx > 0) == (gy > 0) {
		return 3
	}
	return 1
}

// dilate grows set pixels with a square structuring element of the given
// radius (radius 2 = 5x5), closing small gaps between edge fragments.
func dilate(src *grayMat, radius int) *grayMat {
	dst := newGrayMat(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			if src.at(x, y) == 0 {
				continue
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= src.W || ny >= src.H {
						continue
					}
					dst.set(nx, ny, 255)
				}
			}
		}
	}
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
