package extractor

import (
	"errors"
	"fmt"
)

// SupportedTypes is reported back to callers that upload something else.
const SupportedTypes = "text, JSON, CSV, Excel, PDF"

// ErrNoReadableText means a PDF yielded too little text to be useful,
// usually because it is image-based or corrupted.
var ErrNoReadableText = errors.New("no readable text in PDF, the document may be image-based or corrupted")

type UnsupportedTypeError struct {
	MimeType string
	FileName string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s, supported types are: %s", e.MimeType, e.FileName, SupportedTypes)
}
