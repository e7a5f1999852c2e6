package interfaces

import (
	"context"
)

// PDFExtractor extracts plain text from uploaded PDF bytes. The core only
// ever sees the extracted string; binary parsing stays behind this contract.
type PDFExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}
