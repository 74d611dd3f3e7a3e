package entity

import (
	"regexp"
	"strings"
)

// Rows written before the server stamped an explicit type carry their kind
// only in the content shape. This classifier is the single place such
// sniffing is allowed; typed rows must never be routed through it.
var legacyImageURL = regexp.MustCompile(`(?i)^https?://\S+\.(jpg|jpeg|png|gif|webp)$`)

// ClassifyLegacy guesses the type of an untyped historical row. Base64 PNG
// and JPEG prefixes and bare image URLs map to image; everything else is
// treated as text.
func ClassifyLegacy(content string) MessageType {
	if strings.HasPrefix(content, "iVBORw0KG") || strings.HasPrefix(content, "/9j/") {
		return TypeImage
	}
	if legacyImageURL.MatchString(content) {
		return TypeImage
	}
	return TypeText
}
