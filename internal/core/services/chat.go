package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatService is the single authority over which in-memory chat file
// represents a given PDF at any time. It caches decoded chat files by
// canonical sidecar path and serialises all access per document:
// operations on the same document are mutually exclusive, operations
// on different documents proceed independently.
//
// The cache never evicts; it is bounded by the number of distinct
// documents opened in a session. Between saves the in-memory graph is
// the single source of truth; the service never re-reads a cached
// document from disk.
type ChatService struct {
	store driven.SidecarStore

	// mu guards the cache and locks maps themselves; per-document
	// mutual exclusion is provided by the entries of locks.
	mu    sync.Mutex
	cache map[string]*domain.ChatFile
	locks map[string]*sync.Mutex
}

// NewChatService creates a chat service backed by the given sidecar
// store.
func NewChatService(store driven.SidecarStore) *ChatService {
	return &ChatService{
		store: store,
		cache: make(map[string]*domain.ChatFile),
		locks: make(map[string]*sync.Mutex),
	}
}

// keyFor canonicalises a PDF path to its cache key. Two spellings that
// canonicalise to the same sidecar path share one cached instance.
func (s *ChatService) keyFor(pdfPath string) string {
	return s.store.SidecarPath(pdfPath)
}

// lockFor returns the per-document mutex for key, creating it on
// first use.
func (s *ChatService) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *ChatService) cached(key string) *domain.ChatFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[key]
}

func (s *ChatService) insert(key string, cf *domain.ChatFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cf
}

// Load returns the chat file for the PDF, reading the sidecar file
// only on a cache miss.
func (s *ChatService) Load(ctx context.Context, pdfPath string) (*domain.ChatFile, bool) {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.loadLocked(ctx, key)
	return cf, cf != nil
}

// loadLocked resolves the chat file without creating one. The caller
// must hold the document lock.
func (s *ChatService) loadLocked(ctx context.Context, key string) *domain.ChatFile {
	if cf := s.cached(key); cf != nil {
		return cf
	}
	if !s.store.Exists(key) {
		return nil
	}
	cf, err := s.store.Read(ctx, key)
	if err != nil {
		// A corrupt or unreadable sidecar degrades to "no prior
		// history" so it never blocks new annotation.
		logger.Warn("failed to load chat file %s: %v", key, err)
		return nil
	}
	s.insert(key, cf)
	logger.Debug("loaded chat file %s (%d annotations, %d notes)", key, len(cf.Annotations), len(cf.Notes))
	return cf
}

// GetOrCreate returns the chat file for the PDF, constructing an empty
// one in the cache when none exists. Nothing is written to disk until
// the first explicit Save.
func (s *ChatService) GetOrCreate(ctx context.Context, pdfPath string) *domain.ChatFile {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()
	return s.getOrCreateLocked(ctx, key, pdfPath)
}

// Snapshot returns a deep copy of the chat file, taken while holding
// the document lock. Serving layers marshal the copy, never the live
// graph, so a concurrent mutation cannot race the serialisation.
func (s *ChatService) Snapshot(ctx context.Context, pdfPath string) (*domain.ChatFile, bool) {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.loadLocked(ctx, key)
	if cf == nil {
		return nil, false
	}
	return cf.Clone(), true
}

// getOrCreateLocked resolves or constructs the chat file. The caller
// must hold the document lock.
func (s *ChatService) getOrCreateLocked(ctx context.Context, key, pdfPath string) *domain.ChatFile {
	if cf := s.loadLocked(ctx, key); cf != nil {
		return cf
	}
	cf := domain.NewChatFile(pdfPath)
	s.insert(key, cf)
	logger.Debug("created chat file for %s", pdfPath)
	return cf
}

// Save writes the cached chat file to its sidecar path. The in-memory
// state is never discarded on a failed write, so a retry after the
// I/O issue is resolved succeeds without data loss.
func (s *ChatService) Save(ctx context.Context, pdfPath string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.cached(key)
	if cf == nil {
		return fmt.Errorf("save %s: %w", pdfPath, domain.ErrNotCached)
	}

	prev := cf.UpdatedAt
	cf.UpdatedAt = time.Now().UTC()
	if err := s.store.Write(ctx, key, cf); err != nil {
		// The timestamp advances only with a successful save.
		cf.UpdatedAt = prev
		logger.Warn("failed to save chat file %s: %v", key, err)
		return fmt.Errorf("save %s: %w", pdfPath, err)
	}
	logger.Debug("saved chat file %s", key)
	return nil
}

// GetOrCreateAnnotation returns a copy of the existing annotation, or
// creates it with the supplied fields. First-write-wins: replaying the
// call with different page/box arguments does not touch the existing
// entity. The copy is detached, so reading it cannot race a
// concurrent mutation of the document.
func (s *ChatService) GetOrCreateAnnotation(ctx context.Context, pdfPath string, in driving.AnnotationInput) *domain.Annotation {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	if ann, ok := cf.Annotations[in.ID]; ok {
		return ann.Clone()
	}
	ann := domain.NewAnnotation(in.ID, in.PageNumber, in.BoundingBox, in.ImageBase64)
	cf.Annotations[in.ID] = ann
	return ann.Clone()
}

// AddMessages appends messages in order to the annotation's
// conversation.
func (s *ChatService) AddMessages(ctx context.Context, pdfPath, annotationID string, messages []domain.Message) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	ann, ok := cf.Annotations[annotationID]
	if !ok {
		return fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	ann.Messages = append(ann.Messages, messages...)
	return nil
}

// EditMessage replaces a message's content in place.
func (s *ChatService) EditMessage(ctx context.Context, pdfPath, annotationID, messageID, newContent string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	ann, ok := cf.Annotations[annotationID]
	if !ok {
		return fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	msg := ann.MessageByID(messageID)
	if msg == nil {
		return fmt.Errorf("message %q: %w", messageID, domain.ErrNotFound)
	}
	msg.Content = newContent
	return nil
}

// DeleteMessage removes the message with the given id from the
// annotation's conversation.
func (s *ChatService) DeleteMessage(ctx context.Context, pdfPath, annotationID, messageID string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	ann, ok := cf.Annotations[annotationID]
	if !ok {
		return fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	for i := range ann.Messages {
		if ann.Messages[i].ID == messageID {
			ann.Messages = append(ann.Messages[:i], ann.Messages[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %q: %w", messageID, domain.ErrNotFound)
}

// DeleteAnnotation removes the annotation and, with it, all of its
// messages.
func (s *ChatService) DeleteAnnotation(ctx context.Context, pdfPath, annotationID string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	if _, ok := cf.Annotations[annotationID]; !ok {
		return fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	delete(cf.Annotations, annotationID)
	return nil
}

// SetAnnotationTitle sets the annotation's title, overwriting any
// existing value.
func (s *ChatService) SetAnnotationTitle(ctx context.Context, pdfPath, annotationID, title string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	ann, ok := cf.Annotations[annotationID]
	if !ok {
		return fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	ann.Title = title
	return nil
}

// SetAnnotationTitleIfUnset sets the title only when the annotation
// has none yet, reporting whether it was applied. The check and the
// write share the document lock, so of several concurrently generated
// titles exactly one lands and none overwrites another.
func (s *ChatService) SetAnnotationTitleIfUnset(ctx context.Context, pdfPath, annotationID, title string) (bool, error) {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	ann, ok := cf.Annotations[annotationID]
	if !ok {
		return false, fmt.Errorf("annotation %q: %w", annotationID, domain.ErrNotFound)
	}
	if ann.Title != "" {
		return false, nil
	}
	ann.Title = title
	return true, nil
}

// CreateNote creates a note and returns a copy of it, or a copy of
// the existing one when the id collides.
func (s *ChatService) CreateNote(ctx context.Context, pdfPath string, in driving.NoteInput) *domain.Note {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	if note, ok := cf.Notes[in.ID]; ok {
		return note.Clone()
	}
	note := domain.NewNote(in.ID, in.PageNumber, in.SelectedText, in.BoundingBox, in.ContentType, in.Content)
	cf.Notes[in.ID] = note
	return note.Clone()
}

// GetNote returns a copy of the note with the given id.
func (s *ChatService) GetNote(ctx context.Context, pdfPath, noteID string) (*domain.Note, error) {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	note, ok := cf.Notes[noteID]
	if !ok {
		return nil, fmt.Errorf("note %q: %w", noteID, domain.ErrNotFound)
	}
	return note.Clone(), nil
}

// UpdateNote applies a partial update. The title is applied only when
// the note has none yet, unless the update asks to overwrite.
func (s *ChatService) UpdateNote(ctx context.Context, pdfPath, noteID string, upd domain.NoteUpdate) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	note, ok := cf.Notes[noteID]
	if !ok {
		return fmt.Errorf("note %q: %w", noteID, domain.ErrNotFound)
	}
	if upd.ContentType != nil {
		note.ContentType = *upd.ContentType
	}
	if upd.Content != nil {
		note.Content = *upd.Content
	}
	if upd.Title != nil && (note.Title == "" || upd.OverwriteTitle) {
		note.Title = *upd.Title
	}
	return nil
}

// DeleteNote removes the note.
func (s *ChatService) DeleteNote(ctx context.Context, pdfPath, noteID string) error {
	key := s.keyFor(pdfPath)
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	cf := s.getOrCreateLocked(ctx, key, pdfPath)
	if _, ok := cf.Notes[noteID]; !ok {
		return fmt.Errorf("note %q: %w", noteID, domain.ErrNotFound)
	}
	delete(cf.Notes, noteID)
	return nil
}
