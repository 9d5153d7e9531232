package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/margo-labs/margo/internal/core/domain"
	"github.com/margo-labs/margo/internal/core/ports/driving"
	"github.com/margo-labs/margo/internal/logger"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"assistant_configured": s.assistant.IsConfigured(),
	})
}

func (s *Server) handleProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": s.settings.Providers()})
}

func (s *Server) handleCurrentModel(c *gin.Context) {
	provider, model := s.settings.CurrentModel()
	c.JSON(http.StatusOK, gin.H{
		"provider": provider,
		"model":    model,
	})
}

func (s *Server) handleSetModel(c *gin.Context) {
	var req setModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.settings.SetModel(domain.AIProvider(req.Provider), req.Model); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": req.Provider,
		"model":    req.Model,
	})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history := make([]driving.HistoryTurn, 0, len(req.ChatHistory))
	for _, turn := range req.ChatHistory {
		history = append(history, driving.HistoryTurn{Role: turn.Role, Content: turn.Content})
	}

	result, err := s.assistant.Ask(c.Request.Context(), driving.AskRequest{
		PDFPath:      req.PDFPath,
		AnnotationID: req.AnnotationID,
		Question:     req.Question,
		ImageBase64:  req.ImageBase64,
		BoundingBox:  req.BoundingBox.toDomain(),
		PageNumber:   req.PageNumber,
		History:      history,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, askResponse{
		Response:           result.Response,
		AnnotationID:       result.AnnotationID,
		UserMessageID:      result.UserMessageID,
		AssistantMessageID: result.AssistantMessageID,
		Title:              result.Title,
	})
}

func (s *Server) handleEditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.chat.EditMessage(ctx, req.PDFPath, req.AnnotationID, req.MessageID, req.NewContent); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteMessage(c *gin.Context) {
	var req deleteMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.chat.DeleteMessage(ctx, req.PDFPath, req.AnnotationID, req.MessageID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteAnnotation(c *gin.Context) {
	var req deleteAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.chat.DeleteAnnotation(ctx, req.PDFPath, req.AnnotationID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleLoadChat(c *gin.Context) {
	var req pdfPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if s.library != nil {
		// The open still proceeds when the catalog is unavailable.
		if err := s.library.Touch(ctx, req.PDFPath); err != nil {
			logger.Warn("failed to record document open: %v", err)
		}
	}

	// Marshalling works on a snapshot so a concurrent mutation of the
	// same document cannot race the serialisation.
	cf, ok := s.chat.Snapshot(ctx, req.PDFPath)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"exists": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"exists": true,
		"chat":   chatToResponse(cf),
	})
}

func (s *Server) handleSaveChat(c *gin.Context) {
	var req pdfPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.chat.Save(c.Request.Context(), req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleCreateNote(c *gin.Context) {
	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := domain.NoteContentType(req.ContentType)
	if req.ContentType != "" && !contentType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown content type %q", req.ContentType),
		})
		return
	}

	ctx := c.Request.Context()
	note := s.chat.CreateNote(ctx, req.PDFPath, driving.NoteInput{
		ID:           req.NoteID,
		PageNumber:   req.PageNumber,
		SelectedText: req.SelectedText,
		BoundingBox:  req.BoundingBox.toDomain(),
		ContentType:  contentType,
		Content:      req.Content,
	})
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": noteToResponse(note)})
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	var req updateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contentType *domain.NoteContentType
	if req.ContentType != nil {
		ct := domain.NoteContentType(*req.ContentType)
		if !ct.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("unknown content type %q", *req.ContentType),
			})
			return
		}
		contentType = &ct
	}

	result, err := s.assistant.UpdateNote(c.Request.Context(), driving.UpdateNoteRequest{
		PDFPath:       req.PDFPath,
		NoteID:        req.NoteID,
		ContentType:   contentType,
		Content:       req.Content,
		GenerateTitle: req.GenerateTitle,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"note":  noteToResponse(result.Note),
		"title": result.Title,
	})
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	var req deleteNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.chat.DeleteNote(ctx, req.PDFPath, req.NoteID); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.Save(ctx, req.PDFPath); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleExtractPageImage(c *gin.Context) {
	if s.renderer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "page rendering unavailable"})
		return
	}

	var req extractPageImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Scale <= 0 {
		req.Scale = 2.0
	}

	data, err := s.renderer.RenderPage(c.Request.Context(), req.PDFPath, req.PageNumber, req.Scale)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page_number":  req.PageNumber,
		"image_base64": base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) handleRecents(c *gin.Context) {
	if s.library == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "library unavailable"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	recents, err := s.library.Recents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if recents == nil {
		recents = []driving.RecentDocument{}
	}
	c.JSON(http.StatusOK, gin.H{"recents": recents})
}

// Wire representation of a loaded chat file.

type chatFileResponse struct {
	PDFPath     string                        `json:"pdf_path"`
	PDFName     string                        `json:"pdf_name"`
	CreatedAt   time.Time                     `json:"created_at"`
	UpdatedAt   time.Time                     `json:"updated_at"`
	Annotations map[string]annotationResponse `json:"annotations"`
	Notes       map[string]noteResponse       `json:"notes"`
}

type annotationResponse struct {
	ID          string            `json:"id"`
	PageNumber  int               `json:"page_number"`
	CreatedAt   time.Time         `json:"created_at"`
	BoundingBox *boundingBox      `json:"bounding_box,omitempty"`
	ImageBase64 string            `json:"image_base64,omitempty"`
	Title       string            `json:"title,omitempty"`
	Messages    []messageResponse `json:"messages"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	ImageBase64 string    `json:"image_base64,omitempty"`
}

func chatToResponse(cf *domain.ChatFile) chatFileResponse {
	out := chatFileResponse{
		PDFPath:     cf.PDFPath,
		PDFName:     cf.PDFName,
		CreatedAt:   cf.CreatedAt,
		UpdatedAt:   cf.UpdatedAt,
		Annotations: make(map[string]annotationResponse, len(cf.Annotations)),
		Notes:       make(map[string]noteResponse, len(cf.Notes)),
	}
	for id, ann := range cf.Annotations {
		messages := make([]messageResponse, 0, len(ann.Messages))
		for _, msg := range ann.Messages {
			messages = append(messages, messageResponse{
				ID:          msg.ID,
				Role:        msg.Role.String(),
				Content:     msg.Content,
				Timestamp:   msg.Timestamp,
				ImageBase64: msg.ImageBase64,
			})
		}
		out.Annotations[id] = annotationResponse{
			ID:          ann.ID,
			PageNumber:  ann.PageNumber,
			CreatedAt:   ann.CreatedAt,
			BoundingBox: fromDomainBox(ann.BoundingBox),
			ImageBase64: ann.ImageBase64,
			Title:       ann.Title,
			Messages:    messages,
		}
	}
	for id, note := range cf.Notes {
		out.Notes[id] = noteToResponse(note)
	}
	return out
}
