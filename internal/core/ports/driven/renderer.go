package driven

import "context"

// PageRenderer rasterises one page of a PDF to an image. The core
// treats the produced bytes as opaque; encoding them for transport is
// the caller's concern.
type PageRenderer interface {
	// RenderPage renders the 0-based page of the PDF at pdfPath as PNG
	// bytes. scale multiplies the base resolution (1.0 = 72 DPI).
	RenderPage(ctx context.Context, pdfPath string, pageNumber int, scale float64) ([]byte, error)
}
