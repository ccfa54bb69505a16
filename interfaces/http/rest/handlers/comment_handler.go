package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"comments-api/application/commands"
	"comments-api/application/commands/bus"
	"comments-api/application/queries"
	querybus "comments-api/application/queries/bus"
	"comments-api/domain/core/aggregates"
	"comments-api/domain/core/entities"
	"comments-api/domain/core/valueobjects"
	"comments-api/interfaces/http/rest/middleware"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *CommentHandler {
	return &CommentHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errorHandler,
		logger:     logger,
	}
}

// PostCommentRequest is the body of POST /comments. Field rules are enforced
// by the comment factory; the tags only bound the payload size.
type PostCommentRequest struct {
	ID        string                     `json:"id,omitempty" validate:"max=64"`
	Author    string                     `json:"author" validate:"max=100"`
	PostID    string                     `json:"postId" validate:"max=256"`
	Text      string                     `json:"text" validate:"max=10000"`
	ReplyToID string                     `json:"replyToId,omitempty" validate:"max=64"`
	Source    *valueobjects.SourceFields `json:"source,omitempty"`
}

// PatchCommentRequest is the body of PATCH /comments/{id}.
type PatchCommentRequest struct {
	Text      string `json:"text" validate:"max=10000"`
	Published *bool  `json:"published,omitempty"`
}

// PostedResponse wraps a created comment.
type PostedResponse struct {
	Posted *entities.Record `json:"posted"`
}

// PatchedResponse wraps an edited comment.
type PatchedResponse struct {
	Patched *entities.Record `json:"patched"`
}

// DeletedResponse wraps a removal result.
type DeletedResponse struct {
	Deleted *commands.RemoveCommentResult `json:"deleted"`
}

// PostComment handles POST /comments
func (h *CommentHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	var req PostCommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	source := req.Source
	if source == nil {
		source = requestSource(r)
	}

	res, err := h.commandBus.Send(r.Context(), commands.AddCommentCommand{
		ID:        req.ID,
		Author:    req.Author,
		PostID:    req.PostID,
		Text:      req.Text,
		ReplyToID: req.ReplyToID,
		Source:    source,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rec, ok := res.(*entities.Record)
	if !ok {
		h.errors.Handle(w, r, unexpectedResult(res))
		return
	}
	h.respondJSON(w, http.StatusCreated, PostedResponse{Posted: rec})
}

// PatchComment handles PATCH /comments/{id}
func (h *CommentHandler) PatchComment(w http.ResponseWriter, r *http.Request) {
	var req PatchCommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.commandBus.Send(r.Context(), commands.EditCommentCommand{
		ID:        chi.URLParam(r, "id"),
		Text:      req.Text,
		Published: req.Published,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rec, ok := res.(*entities.Record)
	if !ok {
		h.errors.Handle(w, r, unexpectedResult(res))
		return
	}
	h.respondJSON(w, http.StatusOK, PatchedResponse{Patched: rec})
}

// DeleteComment handles DELETE /comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	res, err := h.commandBus.Send(r.Context(), commands.RemoveCommentCommand{
		ID: chi.URLParam(r, "id"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, ok := res.(*commands.RemoveCommentResult)
	if !ok {
		h.errors.Handle(w, r, unexpectedResult(res))
		return
	}
	h.respondJSON(w, http.StatusOK, DeletedResponse{Deleted: result})
}

// ListComments handles GET /comments?postId=
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, queries.ListCommentsQuery{PostID: r.URL.Query().Get("postId")})
}

// ListMainComments handles GET /main-comments
func (h *CommentHandler) ListMainComments(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, queries.ListMainCommentsQuery{})
}

func (h *CommentHandler) list(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	res, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	threads, ok := res.([]*aggregates.ThreadedComment)
	if !ok {
		h.errors.Handle(w, r, unexpectedResult(res))
		return
	}
	h.respondJSON(w, http.StatusOK, threads)
}

func (h *CommentHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return false
	}
	return true
}

// requestSource describes where a request came from when the body does not.
func requestSource(r *http.Request) *valueobjects.SourceFields {
	return &valueobjects.SourceFields{
		IP:       middleware.ClientIP(r),
		Browser:  r.UserAgent(),
		Referrer: r.Referer(),
	}
}

func unexpectedResult(res interface{}) error {
	return pkgerrors.NewInternalError(fmt.Sprintf("unexpected handler result %T", res))
}

func (h *CommentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
