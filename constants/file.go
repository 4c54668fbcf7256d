package constants

import "strings"

// AllowedImageExtensions holds the file extensions accepted for receipt photos.
var AllowedImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether the extension belongs to a supported receipt image.
func IsImageExt(ext string) bool {
	_, ok := AllowedImageExtensions[NormalizeExt(ext)]
	return ok
}
