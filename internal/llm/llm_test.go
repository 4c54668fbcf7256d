package llm

import (
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPosterKeepsRequestArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	dataDir := t.TempDir()
	p := NewPoster(0, NewArtifactStore(dataDir, discardLogger()), discardLogger())
	raw, status, err := p.PostJSON(context.Background(), srv.URL, map[string]any{"model": "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok": true}`, string(raw))

	entries, err := os.ReadDir(filepath.Join(dataDir, "responses"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "request_"))
	body, err := os.ReadFile(filepath.Join(dataDir, "responses", entries[0].Name()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"model": "m"}`, string(body))
}

func TestPosterNon2xxReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewPoster(0, nil, discardLogger())
	raw, status, err := p.PostJSON(context.Background(), srv.URL, map[string]any{}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(raw), "model not found")
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestDecodeCorners(t *testing.T) {
	content := `{"top_left": [10, 20], "top_right": [590, 25], "bottom_right": [585, 800], "bottom_left": [15, 790]}`
	c, err := DecodeCorners(content, 600, 900, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.TopLeft.X)
	assert.Equal(t, 800.0, c.BottomRight.Y)
}

func TestDecodeCornersFenced(t *testing.T) {
	content := "```json\n{\"top_left\": [0, 0], \"top_right\": [100, 0], \"bottom_right\": [100, 100], \"bottom_left\": [0, 100]}\n```"
	_, err := DecodeCorners(content, 200, 200, discardLogger())
	assert.NoError(t, err)
}

func TestDecodeCornersOutOfFrame(t *testing.T) {
	content := `{"top_left": [10, 20], "top_right": [700, 25], "bottom_right": [585, 800], "bottom_left": [15, 790]}`
	_, err := DecodeCorners(content, 600, 900, discardLogger())
	assert.Error(t, err)
}

func TestDecodeCornersDegenerateStillReturned(t *testing.T) {
	// Two corners 5px apart: suspicious, but the quad is still usable.
	content := `{"top_left": [10, 10], "top_right": [15, 10], "bottom_right": [500, 800], "bottom_left": [10, 800]}`
	c, err := DecodeCorners(content, 600, 900, discardLogger())
	require.NoError(t, err)
	assert.Less(t, c.MinSeparation(), minCornerSeparation)
}

func TestDecodeCornersMalformed(t *testing.T) {
	_, err := DecodeCorners(`{"top_left": [10]}`, 600, 900, discardLogger())
	assert.Error(t, err)
}

func TestReceiptSchemaAcceptsTypicalResponse(t *testing.T) {
	good := []byte(`{
		"items": [
			{"item": "Milk 1L", "price": 1.29, "bbox_2d": [10, 40, 580, 70]},
			{"item": "Bread", "price": "2.50"}
		],
		"store_name": "Corner Market",
		"purchase_date": "2025-05-18",
		"purchase_time": "22:30",
		"payment_method": "card",
		"currency": "EUR",
		"total_amount": 3.79
	}`)
	assert.NoError(t, ValidateJSONAgainstSchema(BuildReceiptJSONSchema(), good))
}

func TestReceiptSchemaRejectsMissingItems(t *testing.T) {
	bad := []byte(`{"store_name": "Corner Market"}`)
	assert.Error(t, ValidateJSONAgainstSchema(BuildReceiptJSONSchema(), bad))
}

func TestReceiptSchemaRejectsBadBBox(t *testing.T) {
	bad := []byte(`{"items": [{"item": "Milk", "price": 1.29, "bbox_2d": [1, 2, 3]}]}`)
	assert.Error(t, ValidateJSONAgainstSchema(BuildReceiptJSONSchema(), bad))
}

func TestEncodeImageCapsDimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2400, 1600))
	data, w, h, err := EncodeImage(img, 1200)
	require.NoError(t, err)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)
	assert.NotEmpty(t, data)
}

func TestEncodeImageKeepsSmallInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	_, w, h, err := EncodeImage(img, 1200)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}
