// Package comments serves the comments nested under a post.
package comments

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/pagination"
	"github.com/mikepea/yatube/pkg/yatube/permissions"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handler handles comment-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new comments handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CommentRequest is the body of create and full update requests.
// post, author and created are read-only and ignored when sent.
type CommentRequest struct {
	Text string `json:"text" binding:"required,notblank"`
}

// PatchCommentRequest is the body of partial updates
type PatchCommentRequest struct {
	Text *string `json:"text" binding:"omitempty,notblank"`
}

// CommentResponse represents a comment in API responses
type CommentResponse struct {
	ID      uint   `json:"id"`
	Author  string `json:"author"`
	Post    uint   `json:"post"`
	Text    string `json:"text"`
	Created string `json:"created"`
}

func commentToResponse(comment *models.Comment) CommentResponse {
	return CommentResponse{
		ID:      comment.ID,
		Author:  comment.Author.Username,
		Post:    comment.PostID,
		Text:    comment.Text,
		Created: comment.Created.UTC().Format(time.RFC3339Nano),
	}
}

// parentPost resolves the post the request is scoped to
func (h *Handler) parentPost(c *gin.Context) (*models.Post, error) {
	id, err := models.ParseID(c.Param("post_id"))
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := h.db.WithContext(c.Request.Context()).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// load resolves the parent post and the comment addressed under it.
// A comment that belongs to another post is not found.
func (h *Handler) load(c *gin.Context) (*models.Post, *models.Comment, error) {
	post, err := h.parentPost(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := models.ParseID(c.Param("comment_id"))
	if err != nil {
		return nil, nil, err
	}
	var comment models.Comment
	err = h.db.WithContext(c.Request.Context()).
		Preload("Author").
		Where("post_id = ?", post.ID).
		First(&comment, id).Error
	if err != nil {
		return nil, nil, err
	}
	return post, &comment, nil
}

// List returns the comments of a post, oldest first
// @Summary List comments of a post
// @Tags comments
// @Produce json
// @Param post_id path int true "Post ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} CommentResponse
// @Failure 404 {object} map[string]string "Post not found"
// @Router /posts/{post_id}/comments/ [get]
func (h *Handler) List(c *gin.Context) {
	post, err := h.parentPost(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	page := pagination.FromQuery(c)
	var comments []models.Comment
	query := h.db.WithContext(c.Request.Context()).
		Model(&models.Comment{}).
		Where("post_id = ?", post.ID).
		Order("created, id")
	count, err := page.Find(query, &comments, "Author")
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	response := make([]CommentResponse, len(comments))
	for i := range comments {
		response[i] = commentToResponse(&comments[i])
	}
	pagination.Respond(c, page, count, response)
}

// Get returns a single comment
// @Summary Get a comment
// @Tags comments
// @Produce json
// @Param post_id path int true "Post ID"
// @Param comment_id path int true "Comment ID"
// @Success 200 {object} CommentResponse
// @Failure 404 {object} map[string]string "Not found"
// @Router /posts/{post_id}/comments/{comment_id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	_, comment, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, commentToResponse(comment))
}

// Create adds a comment by the current user to the post
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Param post_id path int true "Post ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} CommentResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 404 {object} map[string]string "Post not found"
// @Failure 422 {object} map[string]interface{} "Validation error"
// @Security BearerAuth
// @Router /posts/{post_id}/comments/ [post]
func (h *Handler) Create(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		apierror.Respond(c, apierror.ErrAuthenticationRequired)
		return
	}

	post, err := h.parentPost(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	comment := models.Comment{
		AuthorID: actor.ID,
		PostID:   post.ID,
		Text:     strings.TrimSpace(req.Text),
	}
	if err := h.db.WithContext(c.Request.Context()).Omit(clause.Associations).Create(&comment).Error; err != nil {
		apierror.Respond(c, err)
		return
	}

	comment.Author = *actor
	c.JSON(http.StatusCreated, commentToResponse(&comment))
}

// Update replaces the text of a comment
// @Summary Update a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param post_id path int true "Post ID"
// @Param comment_id path int true "Comment ID"
// @Param request body CommentRequest true "Comment"
// @Success 200 {object} CommentResponse
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /posts/{post_id}/comments/{comment_id}/ [put]
func (h *Handler) Update(c *gin.Context) {
	var req CommentRequest
	h.update(c, &req, func() *string { return &req.Text })
}

// PartialUpdate changes the text of a comment when it is sent
// @Summary Partially update a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param post_id path int true "Post ID"
// @Param comment_id path int true "Comment ID"
// @Param request body PatchCommentRequest true "Comment"
// @Success 200 {object} CommentResponse
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /posts/{post_id}/comments/{comment_id}/ [patch]
func (h *Handler) PartialUpdate(c *gin.Context) {
	var req PatchCommentRequest
	h.update(c, &req, func() *string { return req.Text })
}

// update binds req and applies the text it yields. The comment stays on the post from the
// path and keeps its author; only the author may edit it.
func (h *Handler) update(c *gin.Context, req interface{}, text func() *string) {
	post, comment, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := permissions.Authorize(c, comment); err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := c.ShouldBindJSON(req); err != nil {
		// An empty body is an empty object; validate it as such
		if !errors.Is(err, io.EOF) {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}
		if err := binding.Validator.ValidateStruct(req); err != nil {
			apierror.Respond(c, apierror.FromBinding(err))
			return
		}
	}

	if t := text(); t != nil {
		comment.Text = strings.TrimSpace(*t)
	}
	comment.PostID = post.ID

	if err := h.db.WithContext(c.Request.Context()).Omit(clause.Associations).Save(comment).Error; err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, commentToResponse(comment))
}

// Delete removes a comment
// @Summary Delete a comment
// @Tags comments
// @Param post_id path int true "Post ID"
// @Param comment_id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Not found"
// @Security BearerAuth
// @Router /posts/{post_id}/comments/{comment_id}/ [delete]
func (h *Handler) Delete(c *gin.Context) {
	_, comment, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := permissions.Authorize(c, comment); err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(comment).Error; err != nil {
		apierror.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers comment routes on the given router group.
// The group is expected to run permissions.OwnerOrReadOnly.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/posts/:post_id/comments/", h.List)
	rg.POST("/posts/:post_id/comments/", h.Create)
	rg.GET("/posts/:post_id/comments/:comment_id/", h.Get)
	rg.PUT("/posts/:post_id/comments/:comment_id/", h.Update)
	rg.PATCH("/posts/:post_id/comments/:comment_id/", h.PartialUpdate)
	rg.DELETE("/posts/:post_id/comments/:comment_id/", h.Delete)
}
