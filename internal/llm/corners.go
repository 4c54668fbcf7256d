package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bilbot/bilbot/internal/entity"
)

// minCornerSeparation is the smallest credible distance between any two
// detected corners, in pixels. Closer pairs are logged as suspicious but the
// result is still returned; downstream warping degrades gracefully.
const minCornerSeparation = 10.0

// DecodeCorners parses a corner-detection response into an ordered quad and
// checks the points fall inside the width x height frame.
func DecodeCorners(content string, width, height int, logger *slog.Logger) (entity.DocumentCorners, error) {
	var raw struct {
		TopLeft     []float64 `json:"top_left"`
		TopRight    []float64 `json:"top_right"`
		BottomRight []float64 `json:"bottom_right"`
		BottomLeft  []float64 `json:"bottom_left"`
	}
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &raw); err != nil {
		return entity.DocumentCorners{}, fmt.Errorf("decode corners: %w", err)
	}

	pts := [4][]float64{raw.TopLeft, raw.TopRight, raw.BottomRight, raw.BottomLeft}
	var quad [4]entity.Point
	for i, p := range pts {
		if len(p) != 2 {
			return entity.DocumentCorners{}, fmt.Errorf("corner %d: expected [x, y], got %v", i, p)
		}
		if p[0] < 0 || p[1] < 0 || p[0] > float64(width) || p[1] > float64(height) {
			return entity.DocumentCorners{}, fmt.Errorf("corner %d out of frame: (%v, %v)", i, p[0], p[1])
		}
		quad[i] = entity.Point{X: p[0], Y: p[1]}
	}

	// The model labels its own corners; the labels are trusted, only the
	// spread is sanity-checked.
	c := entity.DocumentCorners{
		TopLeft: quad[0], TopRight: quad[1], BottomRight: quad[2], BottomLeft: quad[3],
	}
	if sep := c.MinSeparation(); sep < minCornerSeparation {
		logger.Warn("llm.corners.degenerate_quad", "min_separation", sep)
	}
	return c, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line
		first := strings.TrimSpace(s[:i])
		if first == "" || isIdentifier(first) {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isIdentifier(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) > 0
}
