package domain

import "time"

// BoundingBox is a rectangular region in PDF coordinate space.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Annotation is a screenshot-anchored conversation thread on one PDF page.
//
// The id and page number are fixed at creation. Messages are kept in
// insertion order, which is the conversation order.
type Annotation struct {
	// ID is the unique identifier, unique within the owning chat file.
	ID string

	// PageNumber is the 0-based page the annotation lives on.
	PageNumber int

	// CreatedAt is when the annotation was created.
	CreatedAt time.Time

	// BoundingBox is the selected region, nil when the annotation has no
	// region anchor.
	BoundingBox *BoundingBox

	// ImageBase64 is an optional cached screenshot of the selected
	// region, opaque to the backend.
	ImageBase64 string

	// Title is the human-readable title. Empty until set; the automatic
	// title generation path sets it at most once, explicit updates may
	// overwrite it.
	Title string

	// Messages is the conversation, in insertion order.
	Messages []Message
}

// NewAnnotation creates an annotation with the current timestamp and an
// empty conversation.
func NewAnnotation(id string, pageNumber int, box *BoundingBox, imageBase64 string) *Annotation {
	return &Annotation{
		ID:          id,
		PageNumber:  pageNumber,
		CreatedAt:   time.Now().UTC(),
		BoundingBox: box,
		ImageBase64: imageBase64,
	}
}

// MessageByID returns the message with the given id, or nil.
func (a *Annotation) MessageByID(id string) *Message {
	for i := range a.Messages {
		if a.Messages[i].ID == id {
			return &a.Messages[i]
		}
	}
	return nil
}

// Clone returns a deep copy, nil-safe.
func (b *BoundingBox) Clone() *BoundingBox {
	if b == nil {
		return nil
	}
	copied := *b
	return &copied
}

// Clone returns a deep copy of the annotation and its messages,
// detached from the original.
func (a *Annotation) Clone() *Annotation {
	copied := *a
	copied.BoundingBox = a.BoundingBox.Clone()
	copied.Messages = append([]Message(nil), a.Messages...)
	return &copied
}
