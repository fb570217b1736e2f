// Conversation HTTP handlers.
//
//   - POST /conversations                  (start with a character)
//   - GET  /conversations                  (list own)
//   - GET  /conversations/{id}/messages    (paginated transcript)
//   - POST /conversations/{id}/messages    (send a message, get the reply)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/xAGI-labs/charstream-sub001/internal/domain"
	"github.com/xAGI-labs/charstream-sub001/internal/http/middleware"
	"github.com/xAGI-labs/charstream-sub001/internal/repo"
	"github.com/xAGI-labs/charstream-sub001/internal/services"
)

// idempotencyTTL bounds how long a completed write can be replayed.
const idempotencyTTL = 24 * time.Hour

// StartConversationRequest is the JSON payload for starting a conversation.
type StartConversationRequest struct {
	CharacterID string `json:"character_id" binding:"required" format:"uuid"`
}

// SendMessageRequest is the JSON payload for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required" example:"Tell me about yourself"`
}

// ListConversationsResponse wraps the caller's conversation list.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
}

// ListMessagesResponse wraps a page of messages and pagination information.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a conversation
// @Description Creates a conversation with a visible character and seeds it
// @Description with the character's greeting.
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.StartConversationRequest  true  "Character to talk to"
// @Success     201  {object}  domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Character not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /conversations [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character_id required")
		return
	}
	if _, err := uuid.Parse(req.CharacterID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "character_id must be a UUID")
		return
	}

	conv, err := h.convSvc.Start(c.Request.Context(), userID(c), req.CharacterID)
	if err != nil {
		if errors.Is(err, services.ErrCharacterNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "character not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, conv)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Returns the current user's conversations, most recent first.
// @Tags        Conversations
// @Produce     json
// @Success     200  {object}  handlers.ListConversationsResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	convs, err := h.convSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{Conversations: convs})
}

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a message
// @Description Appends the user's message to a conversation and returns the
// @Description character's reply. Both are persisted atomically. Supports
// @Description safe retries via the Idempotency-Key header (same key returns
// @Description the original reply).
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body  body  handlers.SendMessageRequest  true  "Message"
// @Success     201  {object}  domain.Message
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	ctx := c.Request.Context()
	currentUser := userID(c)

	// Replay path: a previously completed send with this key returns the
	// original reply without re-executing the append.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, id, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetMessage(svc.DB, rec.RecordID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, prev)
					return
				}
			}
		}
	}

	reply, err := h.convSvc.Append(ctx, currentUser, id, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Store path, best effort: a failed insert only forfeits dedup.
	if idemKey != "" {
		if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, id, idemKey, reply.ID, http.StatusCreated, idempotencyTTL)
		}
	}

	ok(c, http.StatusCreated, reply)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages (paginated)
// @Description Returns a page of messages within a conversation owned by the
// @Description current user, oldest first.
// @Tags        Conversations
// @Produce     json
// @Param       id         path   string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"    minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page" minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}
	page, pageSize := clampPagination(c)

	msgs, total, err := h.convSvc.ListMessagesPage(c.Request.Context(), userID(c), id, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs, Pagination: paginationFor(page, pageSize, total)})
}
