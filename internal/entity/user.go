package entity

import (
	"time"

	"github.com/bilbot/bilbot/constants"
)

// User mirrors the chat platform's user identity. The ID is the platform's,
// not ours.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Chat is the conversation a receipt arrived in.
type Chat struct {
	ID    int64
	Type  string
	Title string
}

// Receipt is a stored receipt: provenance of the photo plus the extraction
// result, once processing finished.
type Receipt struct {
	ID        int64
	UserID    int64
	ChatID    int64
	MessageID int
	ImagePath string
	Status    constants.ProcessingStatus
	Record    ReceiptRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}
