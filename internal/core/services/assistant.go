package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driven"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

// Ensure AssistantService implements the interface.
var _ driving.AssistantService = (*AssistantService)(nil)

// AssistantService answers questions about PDF excerpts and records
// the conversation through the chat service. It builds provider
// clients lazily from the current settings, so a model change takes
// effect on the next question without a restart.
type AssistantService struct {
	chat     driving.ChatService
	settings driving.SettingsService
	factory  driven.AssistantClientFactory

	mu        sync.Mutex
	client    driven.AssistantClient
	clientFor domain.AssistantSettings
}

// NewAssistantService creates an assistant service.
func NewAssistantService(chat driving.ChatService, settings driving.SettingsService, factory driven.AssistantClientFactory) *AssistantService {
	return &AssistantService{
		chat:     chat,
		settings: settings,
		factory:  factory,
	}
}

// currentClient returns a client for the current settings, reusing the
// cached one while the settings are unchanged.
func (s *AssistantService) currentClient() (driven.AssistantClient, error) {
	cfg, err := s.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if !cfg.Assistant.IsConfigured() {
		return nil, domain.ErrAssistantUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil && s.clientFor == cfg.Assistant {
		return s.client, nil
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			logger.Warn("failed to close assistant client: %v", err)
		}
		s.client = nil
	}

	client, err := s.factory(cfg.Assistant)
	if err != nil {
		return nil, fmt.Errorf("create assistant client: %w", err)
	}
	s.client = client
	s.clientFor = cfg.Assistant
	logger.Info("assistant client ready (provider: %s, model: %s)", cfg.Assistant.Provider, client.ModelName())
	return client, nil
}

// IsConfigured reports whether an assistant provider is usable with
// the current settings.
func (s *AssistantService) IsConfigured() bool {
	cfg, err := s.settings.Get()
	if err != nil {
		return false
	}
	return cfg.Assistant.IsConfigured()
}

// Ask answers a question against an annotation and persists the
// resulting conversation turn.
func (s *AssistantService) Ask(ctx context.Context, req driving.AskRequest) (*driving.AskResult, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is empty: %w", domain.ErrInvalidInput)
	}
	if req.AnnotationID == "" {
		return nil, fmt.Errorf("annotation id is empty: %w", domain.ErrInvalidInput)
	}

	client, err := s.currentClient()
	if err != nil {
		return nil, err
	}

	prompt := driven.AskPrompt{
		Question:    req.Question,
		ImageBase64: req.ImageBase64,
		History:     make([]driven.HistoryMessage, 0, len(req.History)),
	}
	for _, turn := range req.History {
		prompt.History = append(prompt.History, driven.HistoryMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	answer, err := client.Ask(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("assistant request: %w", err)
	}

	ann := s.chat.GetOrCreateAnnotation(ctx, req.PDFPath, driving.AnnotationInput{
		ID:          req.AnnotationID,
		PageNumber:  req.PageNumber,
		BoundingBox: req.BoundingBox,
		ImageBase64: req.ImageBase64,
	})

	// The first question of an untitled annotation names it. Title
	// generation is best effort; a failure never loses the answer. The
	// conditional set keeps the title-once invariant when two first
	// questions race: only one generated title lands.
	title := ""
	if len(req.History) == 0 && ann.Title == "" {
		generated, err := client.GenerateTitle(ctx, req.Question, answer, req.ImageBase64)
		if err != nil {
			logger.Warn("title generation failed for annotation %s: %v", ann.ID, err)
		} else if generated != "" {
			applied, err := s.chat.SetAnnotationTitleIfUnset(ctx, req.PDFPath, ann.ID, generated)
			if err != nil {
				logger.Warn("failed to store annotation title: %v", err)
			} else if applied {
				title = generated
			}
		}
	}

	userMsg := domain.NewUserMessage(req.Question, req.ImageBase64)
	assistantMsg := domain.NewAssistantMessage(answer)
	if err := s.chat.AddMessages(ctx, req.PDFPath, ann.ID, []domain.Message{userMsg, assistantMsg}); err != nil {
		return nil, fmt.Errorf("record conversation: %w", err)
	}

	// The answer is already produced and cached in memory; a failed
	// save is logged and retried on the next mutation.
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		logger.Warn("failed to save after ask: %v", err)
	}

	return &driving.AskResult{
		Response:           answer,
		AnnotationID:       ann.ID,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
		Title:              title,
	}, nil
}

// UpdateNote applies a note update, generating a title first when
// requested and the note has none yet.
func (s *AssistantService) UpdateNote(ctx context.Context, req driving.UpdateNoteRequest) (*driving.UpdateNoteResult, error) {
	note, err := s.chat.GetNote(ctx, req.PDFPath, req.NoteID)
	if err != nil {
		return nil, err
	}

	upd := domain.NoteUpdate{
		ContentType: req.ContentType,
		Content:     req.Content,
	}

	title := ""
	if req.GenerateTitle && note.Title == "" {
		client, err := s.currentClient()
		if err != nil {
			logger.Warn("note title generation skipped: %v", err)
		} else {
			content := note.Content
			if req.Content != nil {
				content = *req.Content
			}
			generated, err := client.GenerateNoteTitle(ctx, note.SelectedText, content)
			if err != nil {
				logger.Warn("note title generation failed for %s: %v", note.ID, err)
			} else if generated != "" {
				title = generated
				upd.Title = &title
			}
		}
	}

	if err := s.chat.UpdateNote(ctx, req.PDFPath, req.NoteID, upd); err != nil {
		return nil, err
	}
	updated, err := s.chat.GetNote(ctx, req.PDFPath, req.NoteID)
	if err != nil {
		return nil, err
	}
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		logger.Warn("failed to save after note update: %v", err)
	}

	return &driving.UpdateNoteResult{Note: updated, Title: title}, nil
}

// Close releases the cached provider client, if any.
func (s *AssistantService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
