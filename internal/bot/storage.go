package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// imagePath builds the dated storage path for an incoming receipt photo:
// <imageDir>/YYYY/MM/DD/receipt_<user>_<chat>_<message>_<unix>.jpg
func imagePath(imageDir string, userID, chatID int64, messageID int, now time.Time) string {
	return filepath.Join(
		imageDir,
		now.Format("2006"), now.Format("01"), now.Format("02"),
		fmt.Sprintf("receipt_%d_%d_%d_%d.jpg", userID, chatID, messageID, now.Unix()),
	)
}

func saveImage(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
