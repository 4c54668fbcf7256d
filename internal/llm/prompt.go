package llm

// SystemPrompt pins the model's role for both backends. Transcription only:
// the user prompt carries the schema, this carries the contract.
const SystemPrompt = `You are a precise receipt transcription assistant. ` +
	`You read receipt photos and answer with JSON only, copying printed values verbatim and never inventing data.`

// ExtractionPrompt instructs the vision model to read a receipt photo into
// the receipt schema. Kept deliberately literal: smaller vision models follow
// enumerated field lists better than prose.
const ExtractionPrompt = `You are given a photo of a shopping receipt. ` +
	`Extract the purchased items and receipt metadata as JSON with this shape:
{
  "items": [{"item": "<name as printed>", "price": <number>, "bbox_2d": [x1, y1, x2, y2]}],
  "store_name": "<store name>",
  "purchase_date": "<date as printed>",
  "purchase_time": "<time as printed>",
  "payment_method": "<cash, card, ...>",
  "currency": "<3-letter code or symbol>",
  "total_amount": <number>
}
Rules:
- One entry per line item, in reading order. Use the printed item name verbatim.
- bbox_2d is the pixel bounding box of the item line in the image; omit it when unsure.
- Omit any field you cannot read. Never invent values.
- Return ONLY the JSON object, no commentary.`

// CornerPrompt asks for the four document corners in pixel coordinates.
const CornerPrompt = `Locate the paper receipt in this photo. ` +
	`Return the pixel coordinates of its four corners as JSON:
{"top_left": [x, y], "top_right": [x, y], "bottom_right": [x, y], "bottom_left": [x, y]}
Return ONLY the JSON object.`
