package api

import (
	"time"

	"github.com/margo-labs/margo/internal/core/domain"
)

// boundingBox mirrors domain.BoundingBox on the wire.
type boundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b *boundingBox) toDomain() *domain.BoundingBox {
	if b == nil {
		return nil
	}
	return &domain.BoundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func fromDomainBox(b *domain.BoundingBox) *boundingBox {
	if b == nil {
		return nil
	}
	return &boundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// historyTurn is one prior conversation turn as sent by the frontend.
type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	PDFPath      string        `json:"pdf_path" binding:"required"`
	AnnotationID string        `json:"annotation_id" binding:"required"`
	Question     string        `json:"question" binding:"required"`
	ImageBase64  string        `json:"image_base64"`
	BoundingBox  *boundingBox  `json:"bounding_box"`
	PageNumber   int           `json:"page_number"`
	ChatHistory  []historyTurn `json:"chat_history"`
}

type askResponse struct {
	Response           string `json:"response"`
	AnnotationID       string `json:"annotation_id"`
	UserMessageID      string `json:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id"`
	Title              string `json:"title,omitempty"`
}

type editMessageRequest struct {
	PDFPath      string `json:"pdf_path" binding:"required"`
	AnnotationID string `json:"annotation_id" binding:"required"`
	MessageID    string `json:"message_id" binding:"required"`
	NewContent   string `json:"new_content"`
}

type deleteMessageRequest struct {
	PDFPath      string `json:"pdf_path" binding:"required"`
	AnnotationID string `json:"annotation_id" binding:"required"`
	MessageID    string `json:"message_id" binding:"required"`
}

type deleteAnnotationRequest struct {
	PDFPath      string `json:"pdf_path" binding:"required"`
	AnnotationID string `json:"annotation_id" binding:"required"`
}

type pdfPathRequest struct {
	PDFPath string `json:"pdf_path" binding:"required"`
}

type setModelRequest struct {
	Provider string `json:"provider" binding:"required"`
	Model    string `json:"model" binding:"required"`
}

type createNoteRequest struct {
	PDFPath      string       `json:"pdf_path" binding:"required"`
	NoteID       string       `json:"note_id" binding:"required"`
	PageNumber   int          `json:"page_number"`
	SelectedText string       `json:"selected_text"`
	BoundingBox  *boundingBox `json:"bounding_box"`
	ContentType  string       `json:"content_type"`
	Content      string       `json:"content"`
}

type updateNoteRequest struct {
	PDFPath       string  `json:"pdf_path" binding:"required"`
	NoteID        string  `json:"note_id" binding:"required"`
	ContentType   *string `json:"content_type"`
	Content       *string `json:"content"`
	GenerateTitle bool    `json:"generate_title"`
}

type deleteNoteRequest struct {
	PDFPath string `json:"pdf_path" binding:"required"`
	NoteID  string `json:"note_id" binding:"required"`
}

type extractPageImageRequest struct {
	PDFPath    string  `json:"pdf_path" binding:"required"`
	PageNumber int     `json:"page_number"`
	Scale      float64 `json:"scale"`
}

// noteResponse mirrors a note on the wire.
type noteResponse struct {
	ID           string       `json:"id"`
	PageNumber   int          `json:"page_number"`
	CreatedAt    time.Time    `json:"created_at"`
	SelectedText string       `json:"selected_text,omitempty"`
	BoundingBox  *boundingBox `json:"bounding_box,omitempty"`
	ContentType  string       `json:"content_type"`
	Content      string       `json:"content"`
	Title        string       `json:"title,omitempty"`
}

func noteToResponse(n *domain.Note) noteResponse {
	return noteResponse{
		ID:           n.ID,
		PageNumber:   n.PageNumber,
		CreatedAt:    n.CreatedAt,
		SelectedText: n.SelectedText,
		BoundingBox:  fromDomainBox(n.BoundingBox),
		ContentType:  n.ContentType.String(),
		Content:      n.Content,
		Title:        n.Title,
	}
}
