package pdftoppm

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margo-labs/margo/internal/core/domain"
)

// minimalPDF is a single blank page, enough for pdftoppm to render.
const minimalPDF = `%PDF-1.4
1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj
2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj
3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >> endobj
xref
0 4
0000000000 65535 f
0000000009 00000 n
0000000058 00000 n
0000000115 00000 n
trailer << /Size 4 /Root 1 0 R >>
startxref
187
%%EOF
`

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func writeTestPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte(minimalPDF), 0o644))
	return path
}

func TestRenderer_RenderPage(t *testing.T) {
	ctx := context.Background()

	t.Run("renders a page to PNG", func(t *testing.T) {
		r := newTestRenderer(t)
		pdf := writeTestPDF(t)

		data, err := r.RenderPage(ctx, pdf, 0, 2.0)

		require.NoError(t, err)
		require.NotEmpty(t, data)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
	})

	t.Run("rejects a negative page number", func(t *testing.T) {
		r := newTestRenderer(t)

		_, err := r.RenderPage(ctx, writeTestPDF(t), -1, 1.0)

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("reports a missing PDF as not found", func(t *testing.T) {
		r := newTestRenderer(t)

		_, err := r.RenderPage(ctx, filepath.Join(t.TempDir(), "ghost.pdf"), 0, 1.0)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("reports an out-of-range page as not found", func(t *testing.T) {
		r := newTestRenderer(t)

		_, err := r.RenderPage(ctx, writeTestPDF(t), 99, 1.0)

		assert.Error(t, err)
	})
}
