package follows

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/auth"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/pagination"
	"gorm.io/gorm"
)

// Handler handles follow-related requests. Every route needs an authenticated user.
type Handler struct {
	db      *gorm.DB
	service *Service
}

// NewHandler creates a new follows handler
func NewHandler(db *gorm.DB, service *Service) *Handler {
	return &Handler{db: db, service: service}
}

// FollowRequest names the user to follow
type FollowRequest struct {
	Following string `json:"following" binding:"required,notblank"`
}

// FollowResponse represents a follow edge in API responses
type FollowResponse struct {
	User      string `json:"user"`
	Following string `json:"following"`
}

func followToResponse(f *models.Follow) FollowResponse {
	return FollowResponse{
		User:      f.User.Username,
		Following: f.Following.Username,
	}
}

func (h *Handler) userByUsername(c *gin.Context, username string) (*models.User, error) {
	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns the users the current user follows
// @Summary List followed users
// @Tags follow
// @Produce json
// @Param search query string false "Filter by followed username"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} FollowResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Security BearerAuth
// @Router /follow/ [get]
func (h *Handler) List(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)

	page := pagination.FromQuery(c)
	follows, count, err := h.service.List(c.Request.Context(), actor, c.Query("search"), page)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	response := make([]FollowResponse, len(follows))
	for i := range follows {
		response[i] = followToResponse(&follows[i])
	}
	pagination.Respond(c, page, count, response)
}

// Create makes the current user follow another user
// @Summary Follow a user
// @Tags follow
// @Accept json
// @Produce json
// @Param request body FollowRequest true "User to follow"
// @Success 201 {object} FollowResponse
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 422 {object} map[string]interface{} "Self-follow, duplicate or unknown user"
// @Security BearerAuth
// @Router /follow/ [post]
func (h *Handler) Create(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)

	var req FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, apierror.FromBinding(err))
		return
	}

	target, err := h.userByUsername(c, req.Following)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apierror.Respond(c, apierror.Validation(map[string][]string{
				"following": {fmt.Sprintf("Object with username=%s does not exist.", req.Following)},
			}))
			return
		}
		apierror.Respond(c, err)
		return
	}

	follow, err := h.service.Follow(c.Request.Context(), actor, target)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, followToResponse(follow))
}

// Delete makes the current user stop following a user
// @Summary Unfollow a user
// @Tags follow
// @Param username path string true "Followed username"
// @Success 204
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 404 {object} map[string]string "Not following"
// @Security BearerAuth
// @Router /follow/{username}/ [delete]
func (h *Handler) Delete(c *gin.Context) {
	actor, _ := auth.CurrentUser(c)

	target, err := h.userByUsername(c, c.Param("username"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	if err := h.service.Unfollow(c.Request.Context(), actor, target); err != nil {
		apierror.Respond(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers follow routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	follow := rg.Group("/follow")
	follow.Use(auth.RequireAuth())
	follow.GET("/", h.List)
	follow.POST("/", h.Create)
	follow.DELETE("/:username/", h.Delete)
}
