package constants

// ProcessingStatus is the canonical status for rows in receipts.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusSaved      ProcessingStatus = "SAVED"      // image stored, extraction pending
	StatusProcessing ProcessingStatus = "PROCESSING" // pipeline running
	StatusExtracted  ProcessingStatus = "EXTRACTED"  // structured data persisted
	StatusIncomplete ProcessingStatus = "INCOMPLETE" // extraction yielded no data; image kept
)
