package llm

// BuildReceiptJSONSchema returns the JSON-Schema (draft 2020-12 subset) the
// vision model is asked to follow, as a generic map. It doubles as the local
// validation schema for the strict parse path.
func BuildReceiptJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"item":  map[string]any{"type": "string", "minLength": 1},
						"price": map[string]any{"type": []string{"number", "string"}},
						"bbox_2d": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "number"},
							"minItems": 4,
							"maxItems": 4,
						},
					},
					"required": []string{"item", "price"},
				},
			},
			"store_name":     map[string]any{"type": "string"},
			"purchase_date":  map[string]any{"type": "string"},
			"purchase_time":  map[string]any{"type": "string"},
			"payment_method": map[string]any{"type": "string"},
			"currency":       map[string]any{"type": "string"},
			"total_amount":   map[string]any{"type": []string{"number", "string"}},
		},
		"required": []string{"items"},
	}
}

// BuildCornerJSONSchema constrains the corner-detection response to four
// [x, y] pixel pairs.
func BuildCornerJSONSchema() map[string]any {
	pair := map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "number"},
		"minItems": 2,
		"maxItems": 2,
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"top_left":     pair,
			"top_right":    pair,
			"bottom_right": pair,
			"bottom_left":  pair,
		},
		"required": []string{"top_left", "top_right", "bottom_right", "bottom_left"},
	}
}
