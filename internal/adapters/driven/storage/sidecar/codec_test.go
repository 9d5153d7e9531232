package sidecar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margo-labs/margo/internal/core/domain"
)

func sampleChatFile() *domain.ChatFile {
	cf := domain.NewChatFile("docs/paper.pdf")
	cf.CreatedAt = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	cf.UpdatedAt = time.Date(2026, 1, 12, 14, 0, 5, 0, time.UTC)

	ann := domain.NewAnnotation("a1", 2, &domain.BoundingBox{X: 10, Y: 20, Width: 300, Height: 120}, "aW1n")
	ann.Title = "Training curve"
	ann.CreatedAt = time.Date(2026, 1, 10, 9, 31, 0, 0, time.UTC)
	ann.Messages = []domain.Message{
		{
			ID:          "m1",
			Role:        domain.RoleUser,
			Content:     "what does this show?",
			Timestamp:   time.Date(2026, 1, 10, 9, 31, 5, 0, time.UTC),
			ImageBase64: "aW1n",
		},
		{
			ID:        "m2",
			Role:      domain.RoleAssistant,
			Content:   "a loss curve",
			Timestamp: time.Date(2026, 1, 10, 9, 31, 9, 0, time.UTC),
		},
	}
	cf.Annotations["a1"] = ann

	note := domain.NewNote("n1", 5, "stochastic gradient descent", nil, domain.NoteContentMarkdown, "look up the proof")
	note.CreatedAt = time.Date(2026, 1, 11, 8, 0, 0, 0, time.UTC)
	note.Title = "SGD"
	cf.Notes["n1"] = note

	return cf
}

func TestCodec_RoundTrip(t *testing.T) {
	original := sampleChatFile()

	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, original.PDFPath, decoded.PDFPath)
	assert.Equal(t, original.PDFName, decoded.PDFName)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))

	ann := decoded.Annotations["a1"]
	require.NotNil(t, ann)
	assert.Equal(t, 2, ann.PageNumber)
	assert.Equal(t, "Training curve", ann.Title)
	assert.Equal(t, "aW1n", ann.ImageBase64)
	require.NotNil(t, ann.BoundingBox)
	assert.Equal(t, 300.0, ann.BoundingBox.Width)

	require.Len(t, ann.Messages, 2)
	assert.Equal(t, "m1", ann.Messages[0].ID)
	assert.Equal(t, domain.RoleUser, ann.Messages[0].Role)
	assert.Equal(t, "what does this show?", ann.Messages[0].Content)
	assert.True(t, ann.Messages[0].Timestamp.Equal(time.Date(2026, 1, 10, 9, 31, 5, 0, time.UTC)))
	assert.Equal(t, domain.RoleAssistant, ann.Messages[1].Role)
	assert.Empty(t, ann.Messages[1].ImageBase64)

	note := decoded.Notes["n1"]
	require.NotNil(t, note)
	assert.Equal(t, 5, note.PageNumber)
	assert.Equal(t, "stochastic gradient descent", note.SelectedText)
	assert.Equal(t, domain.NoteContentMarkdown, note.ContentType)
	assert.Equal(t, "look up the proof", note.Content)
	assert.Equal(t, "SGD", note.Title)
	assert.Nil(t, note.BoundingBox)
}

func TestDecode_Defaults(t *testing.T) {
	t.Run("fills defaults for missing optional fields", func(t *testing.T) {
		data := []byte(`{
			"pdf_path": "docs/paper.pdf",
			"annotations": {
				"a1": {"id": "a1", "page_number": 0}
			},
			"notes": {
				"n1": {"id": "n1"}
			}
		}`)

		before := time.Now().UTC()
		cf, err := Decode(data)
		require.NoError(t, err)

		assert.Equal(t, "paper", cf.PDFName, "display name derives from the path")
		assert.False(t, cf.CreatedAt.Before(before), "absent timestamp repairs to now")

		ann := cf.Annotations["a1"]
		require.NotNil(t, ann)
		assert.Empty(t, ann.Title)
		assert.Nil(t, ann.BoundingBox)
		assert.Empty(t, ann.Messages)

		note := cf.Notes["n1"]
		require.NotNil(t, note)
		assert.Equal(t, domain.NoteContentText, note.ContentType, "content type defaults to text")
		assert.Zero(t, note.PageNumber)
	})

	t.Run("repairs an unparseable timestamp to now", func(t *testing.T) {
		data := []byte(`{"pdf_path": "p.pdf", "created_at": "not-a-date"}`)

		before := time.Now().UTC()
		cf, err := Decode(data)
		require.NoError(t, err)
		assert.False(t, cf.CreatedAt.Before(before))
	})

	t.Run("ignores unknown fields", func(t *testing.T) {
		data := []byte(`{
			"pdf_path": "p.pdf",
			"future_field": {"nested": true},
			"annotations": {
				"a1": {"id": "a1", "page_number": 1, "shiny": "new"}
			}
		}`)

		cf, err := Decode(data)
		require.NoError(t, err)
		assert.Contains(t, cf.Annotations, "a1")
	})

	t.Run("empty document decodes to empty maps", func(t *testing.T) {
		cf, err := Decode([]byte(`{"pdf_path": "p.pdf"}`))
		require.NoError(t, err)
		assert.NotNil(t, cf.Annotations)
		assert.NotNil(t, cf.Notes)
	})
}

func TestDecode_RequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		entity string
		field  string
	}{
		{
			name:   "document without pdf_path",
			data:   `{"annotations": {}}`,
			entity: "document",
			field:  "pdf_path",
		},
		{
			name:   "annotation without id",
			data:   `{"pdf_path": "p.pdf", "annotations": {"a1": {"page_number": 1}}}`,
			entity: "annotation",
			field:  "id",
		},
		{
			name:   "annotation without page number",
			data:   `{"pdf_path": "p.pdf", "annotations": {"a1": {"id": "a1"}}}`,
			entity: "annotation",
			field:  "page_number",
		},
		{
			name:   "message without role",
			data:   `{"pdf_path": "p.pdf", "annotations": {"a1": {"id": "a1", "page_number": 0, "messages": [{"id": "m1", "content": "x"}]}}}`,
			entity: "message",
			field:  "role",
		},
		{
			name:   "message with an unrecognised role",
			data:   `{"pdf_path": "p.pdf", "annotations": {"a1": {"id": "a1", "page_number": 0, "messages": [{"id": "m1", "role": "robot", "content": "x"}]}}}`,
			entity: "message",
			field:  "role",
		},
		{
			name:   "message without content",
			data:   `{"pdf_path": "p.pdf", "annotations": {"a1": {"id": "a1", "page_number": 0, "messages": [{"id": "m1", "role": "user"}]}}}`,
			entity: "message",
			field:  "content",
		},
		{
			name:   "note without id",
			data:   `{"pdf_path": "p.pdf", "notes": {"n1": {"content": "x"}}}`,
			entity: "note",
			field:  "id",
		},
		{
			name:   "note with an unrecognised content type",
			data:   `{"pdf_path": "p.pdf", "notes": {"n1": {"id": "n1", "content_type": "hologram"}}}`,
			entity: "note",
			field:  "content_type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedDocument)

			var malformed *domain.MalformedDocumentError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, tc.entity, malformed.Entity)
			assert.Equal(t, tc.field, malformed.Field)
		})
	}

	t.Run("invalid JSON reports malformed document", func(t *testing.T) {
		_, err := Decode([]byte(`{not json`))
		assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	})
}

func TestEncode_Shape(t *testing.T) {
	t.Run("annotations and notes encode as id-keyed objects", func(t *testing.T) {
		data, err := Encode(sampleChatFile())
		require.NoError(t, err)

		s := string(data)
		assert.Contains(t, s, `"annotations": {`)
		assert.Contains(t, s, `"a1": {`)
		assert.Contains(t, s, `"notes": {`)
		assert.Contains(t, s, `"n1": {`)
	})

	t.Run("timestamps encode as lexically ordered ISO-8601", func(t *testing.T) {
		earlier := encodeTime(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
		later := encodeTime(time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC))

		assert.Equal(t, "2026-01-10T09:00:00Z", earlier)
		assert.True(t, earlier < later)
	})

	t.Run("empty optional fields are omitted", func(t *testing.T) {
		cf := domain.NewChatFile("docs/paper.pdf")
		cf.Annotations["a1"] = domain.NewAnnotation("a1", 0, nil, "")

		data, err := Encode(cf)
		require.NoError(t, err)

		s := string(data)
		assert.NotContains(t, s, `"title"`)
		assert.NotContains(t, s, `"bounding_box"`)
		assert.NotContains(t, s, `"image_base64"`)
	})
}
