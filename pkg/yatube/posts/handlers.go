package posts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/images"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/pagination"
	"github.com/mikepea/yatube/pkg/yatube/permissions"
	"github.com/mikepea/yatube/pkg/yatube/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PubDateFormat is the layout of pub_date in responses
const PubDateFormat = "2006-01-02 15:04"

// Handler handles post-related requests
type Handler struct {
	db        *gorm.DB
	store     storage.Storage
	uploadDir string
}

// NewHandler creates a new posts handler. Images are stored in store below uploadDir.
func NewHandler(db *gorm.DB, store storage.Storage, uploadDir string) *Handler {
	return &Handler{db: db, store: store, uploadDir: uploadDir}
}

// PostRequest documents the accepted body; JSON and multipart/form-data are both accepted.
// image is a "data:image/<format>;base64,<payload>" string or, in a form, a file.
type PostRequest struct {
	Text  string  `json:"text" example:"Hello"`
	Group *uint   `json:"group"`
	Image *string `json:"image"`
}

// PostResponse represents a post in API responses
type PostResponse struct {
	ID      uint    `json:"id"`
	Text    string  `json:"text"`
	PubDate string  `json:"pub_date"`
	Author  string  `json:"author"`
	Image   *string `json:"image"`
	Group   *uint   `json:"group"`
}

func (h *Handler) postToResponse(c *gin.Context, post *models.Post) PostResponse {
	resp := PostResponse{
		ID:      post.ID,
		Text:    post.Text,
		PubDate: post.PubDate.Format(PubDateFormat),
		Author:  post.Author.Username,
		Group:   post.GroupID,
	}
	if post.Image != nil && *post.Image != "" {
		u := h.imageURL(c, *post.Image)
		resp.Image = &u
	}
	return resp
}

// imageURL makes storage URLs that are relative to this server absolute
func (h *Handler) imageURL(c *gin.Context, name string) string {
	u := h.store.URL(name)
	if strings.HasPrefix(u, "/") {
		return pagination.AbsoluteURL(c, u).String()
	}
	return u
}

// List returns all posts
// @Summary List posts
// @Tags posts
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} PostResponse
// @Router /posts/ [get]
func (h *Handler) List(c *gin.Context) {
	page := pagination.FromQuery(c)

	var posts []models.Post
	query := h.db.WithContext(c.Request.Context()).Model(&models.Post{}).Order("posts.id")
	count, err := page.Find(query, &posts, "Author")
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	response := make([]PostResponse, len(posts))
	for i := range posts {
		response[i] = h.postToResponse(c, &posts[i])
	}
	pagination.Respond(c, page, count, response)
}

// Get returns a single post
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param post_id path int true "Post ID"
// @Success 200 {object} PostResponse
// @Failure 404 {object} map[string]string "Post not found"
// @Router /posts/{post_id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	post, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, h.postToResponse(c, post))
}

// Create creates a post authored by the current user
// @Summary Create a post
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param request body PostRequest true "Post"
// @Success 201 {object} PostResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 422 {object} map[string]interface{} "Validation error"
// @Security BearerAuth
// @Router /posts/ [post]
func (h *Handler) Create(c *gin.Context) {
	actor, ok := auth.CurrentUser(c)
	if !ok {
		apierror.Respond(c, apierror.ErrAuthenticationRequired)
		return
	}

	in, err := h.bind(c, true)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	post := models.Post{AuthorID: actor.ID}
	newImage, err := h.apply(c.Request.Context(), &post, in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Omit(clause.Associations).Create(&post).Error; err != nil {
		h.removeImage(c.Request.Context(), newImage)
		apierror.Respond(c, err)
		return
	}

	post.Author = *actor
	c.JSON(http.StatusCreated, h.postToResponse(c, &post))
}

// Update replaces the writable fields of a post; text is required
// @Summary Update a post
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param post_id path int true "Post ID"
// @Param request body PostRequest true "Post"
// @Success 200 {object} PostResponse
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{post_id}/ [put]
func (h *Handler) Update(c *gin.Context) {
	h.update(c, true)
}

// PartialUpdate changes only the fields present in the body
// @Summary Partially update a post
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param post_id path int true "Post ID"
// @Param request body PostRequest true "Post"
// @Success 200 {object} PostResponse
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{post_id}/ [patch]
func (h *Handler) PartialUpdate(c *gin.Context) {
	h.update(c, false)
}

func (h *Handler) update(c *gin.Context, requireText bool) {
	post, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := permissions.Authorize(c, post); err != nil {
		apierror.Respond(c, err)
		return
	}

	in, err := h.bind(c, requireText)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	oldImage := post.Image
	newImage, err := h.apply(c.Request.Context(), post, in)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Omit(clause.Associations).Save(post).Error; err != nil {
		h.removeImage(c.Request.Context(), newImage)
		apierror.Respond(c, err)
		return
	}

	if in.imageSet && oldImage != nil && *oldImage != "" {
		h.removeImage(c.Request.Context(), *oldImage)
	}

	c.JSON(http.StatusOK, h.postToResponse(c, post))
}

// Delete removes a post together with its comments and image
// @Summary Delete a post
// @Tags posts
// @Param post_id path int true "Post ID"
// @Success 204
// @Failure 403 {object} map[string]string "Not the author"
// @Failure 404 {object} map[string]string "Post not found"
// @Security BearerAuth
// @Router /posts/{post_id}/ [delete]
func (h *Handler) Delete(c *gin.Context) {
	post, err := h.load(c)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if err := permissions.Authorize(c, post); err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Delete(post).Error; err != nil {
		apierror.Respond(c, err)
		return
	}
	if post.Image != nil && *post.Image != "" {
		h.removeImage(c.Request.Context(), *post.Image)
	}

	c.Status(http.StatusNoContent)
}

// load fetches the post addressed by the post_id path parameter
func (h *Handler) load(c *gin.Context) (*models.Post, error) {
	id, err := models.ParseID(c.Param("post_id"))
	if err != nil {
		return nil, err
	}
	var post models.Post
	if err := h.db.WithContext(c.Request.Context()).Preload("Author").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// bind reads the body and checks that a referenced group exists
func (h *Handler) bind(c *gin.Context, requireText bool) (*postInput, error) {
	fields := apierror.FieldErrors{}
	in, err := bindPostInput(c, requireText, fields)
	if err != nil {
		return nil, err
	}

	if in.group != nil && len(fields["group"]) == 0 {
		var n int64
		if err := h.db.WithContext(c.Request.Context()).Model(&models.Group{}).Where("id = ?", *in.group).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			fields.Add("group", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.group))
		}
	}

	if err := fields.Err(); err != nil {
		return nil, err
	}
	return in, nil
}

// apply copies validated input onto post, storing a new image if one was sent.
// It returns the name of the stored image so the caller can roll it back.
func (h *Handler) apply(ctx context.Context, post *models.Post, in *postInput) (string, error) {
	if in.text != nil {
		post.Text = *in.text
	}
	if in.groupSet {
		post.GroupID = in.group
	}
	if !in.imageSet {
		return "", nil
	}
	if in.image == nil {
		post.Image = nil
		return "", nil
	}
	name, err := images.Save(ctx, h.store, h.uploadDir, in.image)
	if err != nil {
		return "", err
	}
	post.Image = &name
	return name, nil
}

// removeImage deletes a blob that is no longer referenced. Failures only leave an orphan behind.
func (h *Handler) removeImage(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := h.store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
		zap.L().Warn("failed to delete image", zap.String("name", name), zap.Error(err))
	}
}

// RegisterRoutes registers post routes on the given router group.
// The group is expected to run permissions.OwnerOrReadOnly.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/posts/", h.List)
	rg.POST("/posts/", h.Create)
	rg.GET("/posts/:post_id/", h.Get)
	rg.PUT("/posts/:post_id/", h.Update)
	rg.PATCH("/posts/:post_id/", h.PartialUpdate)
	rg.DELETE("/posts/:post_id/", h.Delete)
}
