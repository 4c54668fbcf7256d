package parser

import (
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/bilbot/bilbot/internal/entity"
	"github.com/bilbot/bilbot/internal/llm"
)

// Parser turns raw model output into a ReceiptRecord. It never fails: the
// strict path (recovered JSON validating against the receipt schema) is
// tried first, then a lenient JSON mapping, then freeform text heuristics.
// The worst case is an empty record.
type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// rawReceipt is the wire shape of a well-behaved model response. Amount
// fields stay raw: models emit both numbers and formatted strings.
type rawReceipt struct {
	Items            []rawItem       `json:"items"`
	StoreName        string          `json:"store_name"`
	PurchaseDate     string          `json:"purchase_date"`
	PurchaseTime     string          `json:"purchase_time"`
	PurchaseDateTime string          `json:"purchase_date_time"`
	PaymentMethod    string          `json:"payment_method"`
	Currency         string          `json:"currency"`
	TotalAmount      json.RawMessage `json:"total_amount"`
	IsValid          *bool           `json:"is_valid"`
}

type rawItem struct {
	Item  string          `json:"item"`
	Name  string          `json:"name"`
	Price json.RawMessage `json:"price"`
	BBox  []float64       `json:"bbox_2d"`
}

// Parse converts model output into a record.
func (p *Parser) Parse(content string) *entity.ReceiptRecord {
	var det currencyDetector

	js, ok := RecoverJSON(content)
	if !ok {
		p.logger.Warn("parser.no_json_found", "content_len", len(content))
		rec := parseFreeform(content, &det)
		p.finish(rec, &det, "freeform")
		return rec
	}

	if err := llm.ValidateJSONAgainstSchema(llm.BuildReceiptJSONSchema(), js); err == nil {
		if rec := p.decodeStructured(js, &det); rec != nil {
			p.finish(rec, &det, "strict")
			return rec
		}
	} else {
		p.logger.Debug("parser.schema_mismatch", "error", err)
	}

	if rec := p.decodeLenient(js, &det); rec != nil {
		p.finish(rec, &det, "lenient")
		return rec
	}

	rec := parseFreeform(content, &det)
	p.finish(rec, &det, "freeform")
	return rec
}

func (p *Parser) finish(rec *entity.ReceiptRecord, det *currencyDetector, phase string) {
	hasAmount := rec.TotalAmount != nil || len(rec.Items) > 0
	rec.Currency = det.resolve(hasAmount)
	if rec.PurchaseDate == nil && rec.PurchaseTime != nil {
		// A time with no date: assume the photo was taken the day of purchase.
		now := time.Now()
		d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		rec.PurchaseDate = &d
		p.logger.Debug("parser.date_defaulted_today", "phase", phase)
	}
	p.logger.Info("parser.parse_done",
		"phase", phase,
		"items", len(rec.Items),
		"has_total", rec.TotalAmount != nil,
		"currency", rec.Currency,
	)
}

// decodeStructured maps schema-valid JSON onto the record.
func (p *Parser) decodeStructured(js []byte, det *currencyDetector) *entity.ReceiptRecord {
	var raw rawReceipt
	if err := json.Unmarshal(js, &raw); err != nil {
		p.logger.Warn("parser.structured_decode_error", "error", err)
		return nil
	}
	return p.fromRaw(&raw, det)
}

func (p *Parser) fromRaw(raw *rawReceipt, det *currencyDetector) *entity.ReceiptRecord {
	rec := &entity.ReceiptRecord{
		Store:         strings.TrimSpace(raw.StoreName),
		PaymentMethod: strings.TrimSpace(raw.PaymentMethod),
		IsValid:       raw.IsValid,
	}
	det.noteCode(raw.Currency)

	for _, it := range raw.Items {
		name := strings.TrimSpace(it.Item)
		if name == "" {
			name = strings.TrimSpace(it.Name)
		}
		price, ok := priceFromJSON(it.Price)
		if name == "" || !ok {
			continue
		}
		det.noteText(string(it.Price))
		item := entity.ReceiptItem{Name: name, Price: price}
		if bbox := bboxFromFloats(it.BBox); bbox != nil {
			item.BoundingBox = bbox
		}
		rec.Items = append(rec.Items, item)
	}

	if total, ok := priceFromJSON(raw.TotalAmount); ok {
		rec.TotalAmount = &total
		det.noteText(string(raw.TotalAmount))
	}

	dateStr, timeStr := raw.PurchaseDate, raw.PurchaseTime
	if raw.PurchaseDateTime != "" {
		d, t := SplitDateTime(raw.PurchaseDateTime)
		if dateStr == "" {
			dateStr = d
		}
		if timeStr == "" {
			timeStr = t
		}
	}
	if d, ok := ParseDate(dateStr); ok {
		rec.PurchaseDate = &d
	}
	if t, ok := ParseTime(timeStr); ok {
		rec.PurchaseTime = &t
	} else if t, ok := ParseTime(dateStr); ok {
		// Some models fold the time into the date field.
		rec.PurchaseTime = &t
	}
	return rec
}

// decodeLenient handles JSON that misses the schema: alternative key names,
// a bare items array, or amounts in unexpected shapes.
func (p *Parser) decodeLenient(js []byte, det *currencyDetector) *entity.ReceiptRecord {
	var top any
	if err := json.Unmarshal(js, &top); err != nil {
		return nil
	}

	switch v := top.(type) {
	case []any:
		// A bare array is taken as the items list.
		rec := &entity.ReceiptRecord{}
		for _, el := range v {
			if m, ok := el.(map[string]any); ok {
				if item, ok := lenientItem(m, det); ok {
					rec.Items = append(rec.Items, item)
				}
			}
		}
		if len(rec.Items) == 0 {
			return nil
		}
		return rec
	case map[string]any:
		raw := rawReceipt{
			StoreName:     firstString(v, "store_name", "store", "merchant", "merchant_name"),
			PurchaseDate:  firstString(v, "purchase_date", "date"),
			PurchaseTime:  firstString(v, "purchase_time", "time"),
			PaymentMethod: firstString(v, "payment_method", "payment"),
			Currency:      firstString(v, "currency", "currency_code"),
		}
		raw.PurchaseDateTime = firstString(v, "purchase_date_time", "datetime")

		rec := p.fromRaw(&raw, det)
		for _, key := range []string{"items", "line_items", "products"} {
			arr, ok := v[key].([]any)
			if !ok {
				continue
			}
			for _, el := range arr {
				if m, ok := el.(map[string]any); ok {
					if item, ok := lenientItem(m, det); ok {
						rec.Items = append(rec.Items, item)
					}
				}
			}
			break
		}
		for _, key := range []string{"total_amount", "total", "amount"} {
			if tv, ok := v[key]; ok {
				if total, ok := priceFromAny(tv); ok {
					rec.TotalAmount = &total
					if s, isStr := tv.(string); isStr {
						det.noteText(s)
					}
					break
				}
			}
		}
		if len(rec.Items) == 0 && rec.TotalAmount == nil && rec.Store == "" {
			return nil
		}
		return rec
	}
	return nil
}

func lenientItem(m map[string]any, det *currencyDetector) (entity.ReceiptItem, bool) {
	name := firstString(m, "item", "name", "description", "product")
	if name == "" {
		return entity.ReceiptItem{}, false
	}
	for _, key := range []string{"price", "amount", "cost"} {
		if pv, ok := m[key]; ok {
			if d, ok := priceFromAny(pv); ok {
				if s, isStr := pv.(string); isStr {
					det.noteText(s)
				}
				item := entity.ReceiptItem{Name: strings.TrimSpace(name), Price: d}
				if arr, ok := m["bbox_2d"].([]any); ok {
					var fs []float64
					for _, el := range arr {
						if f, ok := el.(float64); ok {
							fs = append(fs, f)
						}
					}
					item.BoundingBox = bboxFromFloats(fs)
				}
				return item, true
			}
		}
	}
	return entity.ReceiptItem{}, false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// bboxFromFloats validates and rounds a 4-element [x1 y1 x2 y2] box.
func bboxFromFloats(fs []float64) *entity.BoundingBox {
	if len(fs) != 4 {
		return nil
	}
	b := &entity.BoundingBox{
		X1: int(math.Round(fs[0])),
		Y1: int(math.Round(fs[1])),
		X2: int(math.Round(fs[2])),
		Y2: int(math.Round(fs[3])),
	}
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return nil
	}
	return b
}
