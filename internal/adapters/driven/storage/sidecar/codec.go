package sidecar

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/margo-labs/margo/internal/core/domain"
)

// Wire representation. Required fields are pointers so that absence is
// distinguishable from a zero value; optional fields decode to their
// documented defaults.
type chatFileJSON struct {
	PDFPath     *string                    `json:"pdf_path"`
	PDFName     string                     `json:"pdf_name,omitempty"`
	CreatedAt   string                     `json:"created_at,omitempty"`
	UpdatedAt   string                     `json:"updated_at,omitempty"`
	Annotations map[string]*annotationJSON `json:"annotations"`
	Notes       map[string]*noteJSON       `json:"notes"`
}

type annotationJSON struct {
	ID          *string          `json:"id"`
	PageNumber  *int             `json:"page_number"`
	CreatedAt   string           `json:"created_at,omitempty"`
	BoundingBox *boundingBoxJSON `json:"bounding_box,omitempty"`
	ImageBase64 string           `json:"image_base64,omitempty"`
	Title       string           `json:"title,omitempty"`
	Messages    []*messageJSON   `json:"messages"`
}

type messageJSON struct {
	ID          *string `json:"id"`
	Role        *string `json:"role"`
	Content     *string `json:"content"`
	Timestamp   string  `json:"timestamp,omitempty"`
	ImageBase64 string  `json:"image_base64,omitempty"`
}

type noteJSON struct {
	ID           *string          `json:"id"`
	PageNumber   int              `json:"page_number"`
	CreatedAt    string           `json:"created_at,omitempty"`
	SelectedText string           `json:"selected_text,omitempty"`
	BoundingBox  *boundingBoxJSON `json:"bounding_box,omitempty"`
	ContentType  string           `json:"content_type,omitempty"`
	Content      string           `json:"content,omitempty"`
	Title        string           `json:"title,omitempty"`
}

type boundingBoxJSON struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// encodeTime formats a timestamp as an ISO-8601 UTC string. Fixed
// second precision keeps the strings lexically ordered.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// decodeTime parses an ISO-8601 timestamp. An absent or unparseable
// value repairs to the current time rather than failing the load;
// older files may predate the field.
func decodeTime(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

// Encode serialises a chat file to indented JSON.
func Encode(cf *domain.ChatFile) ([]byte, error) {
	out := chatFileJSON{
		PDFPath:     &cf.PDFPath,
		PDFName:     cf.PDFName,
		CreatedAt:   encodeTime(cf.CreatedAt),
		UpdatedAt:   encodeTime(cf.UpdatedAt),
		Annotations: make(map[string]*annotationJSON, len(cf.Annotations)),
		Notes:       make(map[string]*noteJSON, len(cf.Notes)),
	}

	for id, ann := range cf.Annotations {
		out.Annotations[id] = encodeAnnotation(ann)
	}
	for id, note := range cf.Notes {
		out.Notes[id] = encodeNote(note)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode chat file: %w", err)
	}
	return data, nil
}

func encodeAnnotation(ann *domain.Annotation) *annotationJSON {
	id := ann.ID
	page := ann.PageNumber
	out := &annotationJSON{
		ID:          &id,
		PageNumber:  &page,
		CreatedAt:   encodeTime(ann.CreatedAt),
		ImageBase64: ann.ImageBase64,
		Title:       ann.Title,
		Messages:    make([]*messageJSON, 0, len(ann.Messages)),
	}
	if ann.BoundingBox != nil {
		out.BoundingBox = &boundingBoxJSON{
			X:      ann.BoundingBox.X,
			Y:      ann.BoundingBox.Y,
			Width:  ann.BoundingBox.Width,
			Height: ann.BoundingBox.Height,
		}
	}
	for i := range ann.Messages {
		msg := ann.Messages[i]
		msgID := msg.ID
		role := msg.Role.String()
		content := msg.Content
		out.Messages = append(out.Messages, &messageJSON{
			ID:          &msgID,
			Role:        &role,
			Content:     &content,
			Timestamp:   encodeTime(msg.Timestamp),
			ImageBase64: msg.ImageBase64,
		})
	}
	return out
}

func encodeNote(note *domain.Note) *noteJSON {
	id := note.ID
	out := &noteJSON{
		ID:           &id,
		PageNumber:   note.PageNumber,
		CreatedAt:    encodeTime(note.CreatedAt),
		SelectedText: note.SelectedText,
		ContentType:  note.ContentType.String(),
		Content:      note.Content,
		Title:        note.Title,
	}
	if note.BoundingBox != nil {
		out.BoundingBox = &boundingBoxJSON{
			X:      note.BoundingBox.X,
			Y:      note.BoundingBox.Y,
			Width:  note.BoundingBox.Width,
			Height: note.BoundingBox.Height,
		}
	}
	return out
}

// Decode parses a chat file from JSON. Missing required fields fail
// with a MalformedDocumentError naming the offending entity and field;
// missing optional fields fall back to defaults; unknown fields are
// ignored.
func Decode(data []byte) (*domain.ChatFile, error) {
	var in chatFileJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse chat file: %w: %v", domain.ErrMalformedDocument, err)
	}
	if in.PDFPath == nil || *in.PDFPath == "" {
		return nil, &domain.MalformedDocumentError{Entity: "document", Field: "pdf_path"}
	}

	cf := domain.NewChatFile(*in.PDFPath)
	if in.PDFName != "" {
		cf.PDFName = in.PDFName
	}
	cf.CreatedAt = decodeTime(in.CreatedAt)
	cf.UpdatedAt = decodeTime(in.UpdatedAt)

	for key, annIn := range in.Annotations {
		ann, err := decodeAnnotation(key, annIn)
		if err != nil {
			return nil, err
		}
		cf.Annotations[ann.ID] = ann
	}
	for key, noteIn := range in.Notes {
		note, err := decodeNote(key, noteIn)
		if err != nil {
			return nil, err
		}
		cf.Notes[note.ID] = note
	}
	return cf, nil
}

func decodeAnnotation(key string, in *annotationJSON) (*domain.Annotation, error) {
	if in == nil || in.ID == nil || *in.ID == "" {
		return nil, &domain.MalformedDocumentError{Entity: "annotation", ID: key, Field: "id"}
	}
	if in.PageNumber == nil {
		return nil, &domain.MalformedDocumentError{Entity: "annotation", ID: *in.ID, Field: "page_number"}
	}

	ann := &domain.Annotation{
		ID:          *in.ID,
		PageNumber:  *in.PageNumber,
		CreatedAt:   decodeTime(in.CreatedAt),
		ImageBase64: in.ImageBase64,
		Title:       in.Title,
		Messages:    make([]domain.Message, 0, len(in.Messages)),
	}
	if in.BoundingBox != nil {
		ann.BoundingBox = &domain.BoundingBox{
			X:      in.BoundingBox.X,
			Y:      in.BoundingBox.Y,
			Width:  in.BoundingBox.Width,
			Height: in.BoundingBox.Height,
		}
	}
	for i, msgIn := range in.Messages {
		msg, err := decodeMessage(ann.ID, i, msgIn)
		if err != nil {
			return nil, err
		}
		ann.Messages = append(ann.Messages, msg)
	}
	return ann, nil
}

func decodeMessage(annotationID string, index int, in *messageJSON) (domain.Message, error) {
	position := fmt.Sprintf("%s[%d]", annotationID, index)
	if in == nil || in.ID == nil || *in.ID == "" {
		return domain.Message{}, &domain.MalformedDocumentError{Entity: "message", ID: position, Field: "id"}
	}
	if in.Role == nil {
		return domain.Message{}, &domain.MalformedDocumentError{Entity: "message", ID: *in.ID, Field: "role"}
	}
	role := domain.Role(*in.Role)
	if !role.IsValid() {
		return domain.Message{}, &domain.MalformedDocumentError{Entity: "message", ID: *in.ID, Field: "role"}
	}
	if in.Content == nil {
		return domain.Message{}, &domain.MalformedDocumentError{Entity: "message", ID: *in.ID, Field: "content"}
	}

	return domain.Message{
		ID:          *in.ID,
		Role:        role,
		Content:     *in.Content,
		Timestamp:   decodeTime(in.Timestamp),
		ImageBase64: in.ImageBase64,
	}, nil
}

func decodeNote(key string, in *noteJSON) (*domain.Note, error) {
	if in == nil || in.ID == nil || *in.ID == "" {
		return nil, &domain.MalformedDocumentError{Entity: "note", ID: key, Field: "id"}
	}

	contentType := domain.NoteContentType(in.ContentType)
	if in.ContentType == "" {
		contentType = domain.NoteContentText
	} else if !contentType.IsValid() {
		return nil, &domain.MalformedDocumentError{Entity: "note", ID: *in.ID, Field: "content_type"}
	}

	note := &domain.Note{
		ID:           *in.ID,
		PageNumber:   in.PageNumber,
		CreatedAt:    decodeTime(in.CreatedAt),
		SelectedText: in.SelectedText,
		ContentType:  contentType,
		Content:      in.Content,
		Title:        in.Title,
	}
	if in.BoundingBox != nil {
		note.BoundingBox = &domain.BoundingBox{
			X:      in.BoundingBox.X,
			Y:      in.BoundingBox.Y,
			Width:  in.BoundingBox.Width,
			Height: in.BoundingBox.Height,
		}
	}
	return note, nil
}
