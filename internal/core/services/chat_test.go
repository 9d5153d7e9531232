package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
)

// fakeSidecarStore is an in-memory SidecarStore. It deep-copies on
// read and write so cached instances and "persisted" state cannot
// alias each other, mirroring a real codec round trip.
type fakeSidecarStore struct {
	mu    sync.Mutex
	files map[string]*domain.ChatFile

	readErr  error
	writeErr error

	writeCount int
}

var _ driven.SidecarStore = (*fakeSidecarStore)(nil)

func newFakeSidecarStore() *fakeSidecarStore {
	return &fakeSidecarStore{files: make(map[string]*domain.ChatFile)}
}

func (f *fakeSidecarStore) SidecarPath(pdfPath string) string {
	clean := filepath.Clean(pdfPath)
	return strings.TrimSuffix(clean, filepath.Ext(clean)) + ".chat"
}

func (f *fakeSidecarStore) Exists(sidecarPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[sidecarPath]
	return ok
}

func (f *fakeSidecarStore) Read(_ context.Context, sidecarPath string) (*domain.ChatFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	cf, ok := f.files[sidecarPath]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneChatFile(cf), nil
}

func (f *fakeSidecarStore) Write(_ context.Context, sidecarPath string, cf *domain.ChatFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[sidecarPath] = cloneChatFile(cf)
	f.writeCount++
	return nil
}

func cloneChatFile(cf *domain.ChatFile) *domain.ChatFile {
	out := *cf
	out.Annotations = make(map[string]*domain.Annotation, len(cf.Annotations))
	for id, ann := range cf.Annotations {
		a := *ann
		if ann.BoundingBox != nil {
			box := *ann.BoundingBox
			a.BoundingBox = &box
		}
		a.Messages = append([]domain.Message(nil), ann.Messages...)
		out.Annotations[id] = &a
	}
	out.Notes = make(map[string]*domain.Note, len(cf.Notes))
	for id, note := range cf.Notes {
		n := *note
		if note.BoundingBox != nil {
			box := *note.BoundingBox
			n.BoundingBox = &box
		}
		out.Notes[id] = &n
	}
	return &out
}

func TestChatService_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("returns absent for a PDF with no sidecar file", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		cf, ok := svc.Load(ctx, "docs/paper.pdf")

		assert.Nil(t, cf)
		assert.False(t, ok)
		assert.Empty(t, store.files, "load must not create anything on disk")
	})

	t.Run("reads the sidecar file on first access", func(t *testing.T) {
		store := newFakeSidecarStore()
		seed := domain.NewChatFile("docs/paper.pdf")
		seed.Annotations["a1"] = domain.NewAnnotation("a1", 3, nil, "")
		store.files[store.SidecarPath("docs/paper.pdf")] = seed

		svc := NewChatService(store)
		cf, ok := svc.Load(ctx, "docs/paper.pdf")

		require.True(t, ok)
		require.NotNil(t, cf)
		assert.Equal(t, "paper", cf.PDFName)
		assert.Contains(t, cf.Annotations, "a1")
	})

	t.Run("returns the same instance on repeated access", func(t *testing.T) {
		store := newFakeSidecarStore()
		store.files[store.SidecarPath("docs/paper.pdf")] = domain.NewChatFile("docs/paper.pdf")

		svc := NewChatService(store)
		first, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		second, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)

		assert.Same(t, first, second)
	})

	t.Run("path spellings resolving to one sidecar share one instance", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		first := svc.GetOrCreate(ctx, "docs/paper.pdf")
		second := svc.GetOrCreate(ctx, "docs/../docs/paper.pdf")

		assert.Same(t, first, second)
	})

	t.Run("degrades a corrupt sidecar to absence", func(t *testing.T) {
		store := newFakeSidecarStore()
		store.files[store.SidecarPath("docs/paper.pdf")] = domain.NewChatFile("docs/paper.pdf")
		store.readErr = &domain.MalformedDocumentError{Entity: "annotation", ID: "a1", Field: "page_number"}

		svc := NewChatService(store)
		cf, ok := svc.Load(ctx, "docs/paper.pdf")

		assert.Nil(t, cf)
		assert.False(t, ok)

		// New annotation must still be possible over the broken file.
		fresh := svc.GetOrCreate(ctx, "docs/paper.pdf")
		require.NotNil(t, fresh)
		assert.Empty(t, fresh.Annotations)
	})
}

func TestChatService_GetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an empty chat file in memory only", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		cf := svc.GetOrCreate(ctx, "docs/paper.pdf")

		require.NotNil(t, cf)
		assert.Equal(t, "docs/paper.pdf", cf.PDFPath)
		assert.Equal(t, "paper", cf.PDFName)
		assert.Empty(t, cf.Annotations)
		assert.Empty(t, cf.Notes)
		assert.Empty(t, store.files, "creation must not touch disk")

		loaded, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Same(t, cf, loaded)
	})

	t.Run("returns the existing file when the sidecar exists", func(t *testing.T) {
		store := newFakeSidecarStore()
		seed := domain.NewChatFile("docs/paper.pdf")
		seed.Annotations["a1"] = domain.NewAnnotation("a1", 0, nil, "")
		store.files[store.SidecarPath("docs/paper.pdf")] = seed

		svc := NewChatService(store)
		cf := svc.GetOrCreate(ctx, "docs/paper.pdf")

		assert.Contains(t, cf.Annotations, "a1")
	})
}

func TestChatService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("fails for a document that was never loaded", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		err := svc.Save(ctx, "docs/paper.pdf")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotCached)
	})

	t.Run("round-trips state through the store", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{
			ID:          "a1",
			PageNumber:  2,
			BoundingBox: &domain.BoundingBox{X: 10, Y: 20, Width: 100, Height: 50},
		})
		err := svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
			domain.NewUserMessage("what is this figure?", ""),
			domain.NewAssistantMessage("it shows the training curve"),
		})
		require.NoError(t, err)
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))

		// A fresh service simulates a restart.
		reloaded, ok := NewChatService(store).Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		ann, found := reloaded.Annotations["a1"]
		require.True(t, found)
		assert.Equal(t, 2, ann.PageNumber)
		require.NotNil(t, ann.BoundingBox)
		assert.Equal(t, 100.0, ann.BoundingBox.Width)
		require.Len(t, ann.Messages, 2)
		assert.Equal(t, domain.RoleUser, ann.Messages[0].Role)
		assert.Equal(t, "what is this figure?", ann.Messages[0].Content)
		assert.Equal(t, domain.RoleAssistant, ann.Messages[1].Role)
	})

	t.Run("advances the updated timestamp on every save", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		cf := svc.GetOrCreate(ctx, "docs/paper.pdf")
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))
		first := cf.UpdatedAt

		time.Sleep(time.Millisecond)
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))

		assert.True(t, cf.UpdatedAt.After(first))
	})

	t.Run("failed write leaves the updated timestamp unchanged", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		cf := svc.GetOrCreate(ctx, "docs/paper.pdf")
		before := cf.UpdatedAt

		store.writeErr = errors.New("disk full")
		require.Error(t, svc.Save(ctx, "docs/paper.pdf"))

		assert.True(t, cf.UpdatedAt.Equal(before), "the timestamp advances only with a successful save")
	})

	t.Run("keeps in-memory state when the write fails", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		store.writeErr = errors.New("disk full")
		err := svc.Save(ctx, "docs/paper.pdf")
		require.Error(t, err)

		// Retry after the I/O issue is resolved.
		store.writeErr = nil
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))

		reloaded, ok := NewChatService(store).Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Contains(t, reloaded.Annotations, "a1")
	})

	t.Run("cached state is live, not a stale snapshot", func(t *testing.T) {
		store := newFakeSidecarStore()
		svc := NewChatService(store)

		cf := svc.GetOrCreate(ctx, "docs/paper.pdf")
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))

		// A later mutation is visible through the earlier reference
		// and persists with the next save.
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a2"})
		assert.Contains(t, cf.Annotations, "a2")
		require.NoError(t, svc.Save(ctx, "docs/paper.pdf"))

		reloaded, ok := NewChatService(store).Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Len(t, reloaded.Annotations, 2)
	})
}

func TestChatService_Annotations(t *testing.T) {
	ctx := context.Background()

	t.Run("get or create is first-write-wins", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		first := svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{
			ID:         "a1",
			PageNumber: 4,
		})
		replay := svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{
			ID:         "a1",
			PageNumber: 9,
		})

		assert.Equal(t, first.ID, replay.ID)
		assert.Equal(t, first.CreatedAt, replay.CreatedAt)
		assert.Equal(t, 4, replay.PageNumber, "replay must not overwrite existing fields")
	})

	t.Run("returned annotation is a detached copy", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		ann := svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		require.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
			domain.NewUserMessage("q", ""),
		}))

		assert.Empty(t, ann.Messages, "the copy does not track later mutations")

		ann.Title = "scribble"
		cf, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Empty(t, cf.Annotations["a1"].Title, "writes to the copy do not reach the cache")
		assert.Len(t, cf.Annotations["a1"].Messages, 1)
	})

	t.Run("delete cascades to messages", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		require.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
			domain.NewUserMessage("q", ""),
			domain.NewAssistantMessage("a"),
		}))

		require.NoError(t, svc.DeleteAnnotation(ctx, "docs/paper.pdf", "a1"))

		cf, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.NotContains(t, cf.Annotations, "a1")
	})

	t.Run("delete of an unknown annotation reports not found", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		err := svc.DeleteAnnotation(ctx, "docs/paper.pdf", "ghost")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("set title overwrites an existing title", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		require.NoError(t, svc.SetAnnotationTitle(ctx, "docs/paper.pdf", "a1", "Training curve"))
		require.NoError(t, svc.SetAnnotationTitle(ctx, "docs/paper.pdf", "a1", "Figure 3"))

		cf, _ := svc.Load(ctx, "docs/paper.pdf")
		assert.Equal(t, "Figure 3", cf.Annotations["a1"].Title)
	})

	t.Run("conditional title applies only while unset", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})

		applied, err := svc.SetAnnotationTitleIfUnset(ctx, "docs/paper.pdf", "a1", "Generated")
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = svc.SetAnnotationTitleIfUnset(ctx, "docs/paper.pdf", "a1", "Competing")
		require.NoError(t, err)
		assert.False(t, applied, "a set title is never replaced")

		cf, _ := svc.Load(ctx, "docs/paper.pdf")
		assert.Equal(t, "Generated", cf.Annotations["a1"].Title)

		_, err = svc.SetAnnotationTitleIfUnset(ctx, "docs/paper.pdf", "ghost", "x")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestChatService_Messages(t *testing.T) {
	ctx := context.Background()

	newSvcWithConversation := func(t *testing.T) (*ChatService, []domain.Message) {
		t.Helper()
		svc := NewChatService(newFakeSidecarStore())
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		msgs := []domain.Message{
			domain.NewUserMessage("first question", ""),
			domain.NewAssistantMessage("first answer"),
			domain.NewUserMessage("second question", ""),
		}
		require.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", msgs))
		return svc, msgs
	}

	t.Run("append preserves order", func(t *testing.T) {
		svc, msgs := newSvcWithConversation(t)

		cf, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		stored := cf.Annotations["a1"].Messages
		require.Len(t, stored, 3)
		for i := range msgs {
			assert.Equal(t, msgs[i].ID, stored[i].ID)
		}
	})

	t.Run("append to an unknown annotation reports not found", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		err := svc.AddMessages(ctx, "docs/paper.pdf", "ghost", []domain.Message{
			domain.NewUserMessage("q", ""),
		})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("edit replaces content and keeps position", func(t *testing.T) {
		svc, msgs := newSvcWithConversation(t)

		err := svc.EditMessage(ctx, "docs/paper.pdf", "a1", msgs[1].ID, "corrected answer")
		require.NoError(t, err)

		cf, _ := svc.Load(ctx, "docs/paper.pdf")
		stored := cf.Annotations["a1"].Messages
		assert.Equal(t, "corrected answer", stored[1].Content)
		assert.Equal(t, msgs[1].ID, stored[1].ID)
		assert.Equal(t, domain.RoleAssistant, stored[1].Role)
	})

	t.Run("edit of an unknown message reports not found", func(t *testing.T) {
		svc, _ := newSvcWithConversation(t)

		err := svc.EditMessage(ctx, "docs/paper.pdf", "a1", "ghost", "x")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes exactly the addressed message", func(t *testing.T) {
		svc, msgs := newSvcWithConversation(t)

		require.NoError(t, svc.DeleteMessage(ctx, "docs/paper.pdf", "a1", msgs[1].ID))

		cf, _ := svc.Load(ctx, "docs/paper.pdf")
		stored := cf.Annotations["a1"].Messages
		require.Len(t, stored, 2)
		assert.Equal(t, msgs[0].ID, stored[0].ID)
		assert.Equal(t, msgs[2].ID, stored[1].ID)
	})

	t.Run("delete of an unknown message reports not found", func(t *testing.T) {
		svc, _ := newSvcWithConversation(t)

		err := svc.DeleteMessage(ctx, "docs/paper.pdf", "a1", "ghost")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestChatService_Notes(t *testing.T) {
	ctx := context.Background()

	markdown := domain.NoteContentMarkdown
	content := func(s string) *string { return &s }
	title := func(s string) *string { return &s }

	t.Run("create is first-write-wins", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		first := svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{
			ID:           "n1",
			PageNumber:   1,
			SelectedText: "gradient descent",
			Content:      "check the proof",
		})
		replay := svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{
			ID:      "n1",
			Content: "something else",
		})

		assert.Equal(t, first.ID, replay.ID)
		assert.Equal(t, first.CreatedAt, replay.CreatedAt)
		assert.Equal(t, "check the proof", replay.Content)
		assert.Equal(t, domain.NoteContentText, replay.ContentType, "empty content type defaults to text")
	})

	t.Run("get returns the note or not found", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{ID: "n1"})

		note, err := svc.GetNote(ctx, "docs/paper.pdf", "n1")
		require.NoError(t, err)
		assert.Equal(t, "n1", note.ID)

		_, err = svc.GetNote(ctx, "docs/paper.pdf", "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("update applies only the supplied fields", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{
			ID:      "n1",
			Content: "original",
		})

		err := svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			ContentType: &markdown,
		})
		require.NoError(t, err)

		note, err := svc.GetNote(ctx, "docs/paper.pdf", "n1")
		require.NoError(t, err)
		assert.Equal(t, domain.NoteContentMarkdown, note.ContentType)
		assert.Equal(t, "original", note.Content, "unspecified fields stay untouched")
	})

	t.Run("title applies once unless overwrite is requested", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{ID: "n1"})

		require.NoError(t, svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			Title: title("First title"),
		}))
		require.NoError(t, svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			Title: title("Second title"),
		}))

		note, err := svc.GetNote(ctx, "docs/paper.pdf", "n1")
		require.NoError(t, err)
		assert.Equal(t, "First title", note.Title, "a set title is not silently replaced")

		require.NoError(t, svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			Title:          title("Forced title"),
			OverwriteTitle: true,
		}))
		note, err = svc.GetNote(ctx, "docs/paper.pdf", "n1")
		require.NoError(t, err)
		assert.Equal(t, "Forced title", note.Title)
	})

	t.Run("content update alongside a rejected title still applies", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{ID: "n1"})
		require.NoError(t, svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			Title: title("Kept"),
		}))

		require.NoError(t, svc.UpdateNote(ctx, "docs/paper.pdf", "n1", domain.NoteUpdate{
			Title:   title("Dropped"),
			Content: content("new body"),
		}))

		note, err := svc.GetNote(ctx, "docs/paper.pdf", "n1")
		require.NoError(t, err)
		assert.Equal(t, "Kept", note.Title)
		assert.Equal(t, "new body", note.Content)
	})

	t.Run("update of an unknown note reports not found", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		err := svc.UpdateNote(ctx, "docs/paper.pdf", "ghost", domain.NoteUpdate{
			Content: content("x"),
		})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("delete removes the note", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.CreateNote(ctx, "docs/paper.pdf", driving.NoteInput{ID: "n1"})

		require.NoError(t, svc.DeleteNote(ctx, "docs/paper.pdf", "n1"))

		_, err := svc.GetNote(ctx, "docs/paper.pdf", "n1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = svc.DeleteNote(ctx, "docs/paper.pdf", "n1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestChatService_Snapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("reports absence like load", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		snap, ok := svc.Snapshot(ctx, "docs/paper.pdf")

		assert.Nil(t, snap)
		assert.False(t, ok)
	})

	t.Run("is isolated from later mutations", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})
		require.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
			domain.NewUserMessage("q", ""),
		}))

		snap, ok := svc.Snapshot(ctx, "docs/paper.pdf")
		require.True(t, ok)

		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a2"})
		require.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
			domain.NewAssistantMessage("a"),
		}))

		assert.Len(t, snap.Annotations, 1)
		assert.Len(t, snap.Annotations["a1"].Messages, 1)
	})
}

func TestChatService_Concurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent appends to one annotation all land", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "a1"})

		const writers = 16
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, svc.AddMessages(ctx, "docs/paper.pdf", "a1", []domain.Message{
					domain.NewUserMessage("q", ""),
				}))
			}()
		}
		wg.Wait()

		cf, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Len(t, cf.Annotations["a1"].Messages, writers, "no append may be lost")
	})

	t.Run("documents are mutated independently", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		paths := []string{"docs/one.pdf", "docs/two.pdf", "docs/three.pdf"}

		var wg sync.WaitGroup
		for _, path := range paths {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				svc.GetOrCreateAnnotation(ctx, path, driving.AnnotationInput{ID: "a1"})
				for i := 0; i < 8; i++ {
					assert.NoError(t, svc.AddMessages(ctx, path, "a1", []domain.Message{
						domain.NewUserMessage("q", ""),
					}))
				}
				assert.NoError(t, svc.Save(ctx, path))
			}(path)
		}
		wg.Wait()

		for _, path := range paths {
			cf, ok := svc.Load(ctx, path)
			require.True(t, ok)
			assert.Len(t, cf.Annotations["a1"].Messages, 8)
		}
	})

	t.Run("snapshots walk safely alongside mutation", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())
		svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{ID: "seed"})

		const writers = 8
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				svc.GetOrCreateAnnotation(ctx, "docs/paper.pdf", driving.AnnotationInput{
					ID: fmt.Sprintf("a%d", i),
				})
			}(i)
			go func() {
				defer wg.Done()
				snap, ok := svc.Snapshot(ctx, "docs/paper.pdf")
				if !ok {
					return
				}
				// Ranging over the copy must be safe while writers
				// insert annotations into the cached document.
				for _, ann := range snap.Annotations {
					assert.NotEmpty(t, ann.ID)
				}
			}()
		}
		wg.Wait()

		cf, ok := svc.Load(ctx, "docs/paper.pdf")
		require.True(t, ok)
		assert.Len(t, cf.Annotations, writers+1)
	})

	t.Run("concurrent get-or-create yields one cached instance", func(t *testing.T) {
		svc := NewChatService(newFakeSidecarStore())

		const callers = 8
		instances := make(chan *domain.ChatFile, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				instances <- svc.GetOrCreate(ctx, "docs/paper.pdf")
			}()
		}
		wg.Wait()
		close(instances)

		first := <-instances
		for cf := range instances {
			assert.Same(t, first, cf)
		}
	})
}
