package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/pagination"
	"gorm.io/gorm"
)

// Handler handles group-related requests. Groups are read-only over the API.
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

func groupToResponse(g *models.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Title:       g.Title,
		Slug:        g.Slug,
		Description: g.Description,
	}
}

// List returns all groups
// @Summary List groups
// @Tags groups
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} GroupResponse
// @Router /groups/ [get]
func (h *Handler) List(c *gin.Context) {
	page := pagination.FromQuery(c)

	var groups []models.Group
	count, err := page.Find(h.db.WithContext(c.Request.Context()).Model(&models.Group{}).Order("id"), &groups)
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	response := make([]GroupResponse, len(groups))
	for i := range groups {
		response[i] = groupToResponse(&groups[i])
	}
	pagination.Respond(c, page, count, response)
}

// Get returns a single group
// @Summary Get a group
// @Tags groups
// @Produce json
// @Param group_id path int true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Router /groups/{group_id}/ [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := models.ParseID(c.Param("group_id"))
	if err != nil {
		apierror.Respond(c, err)
		return
	}

	var group models.Group
	if err := h.db.WithContext(c.Request.Context()).First(&group, id).Error; err != nil {
		apierror.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, groupToResponse(&group))
}

// RegisterRoutes registers group routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/groups/", h.List)
	rg.GET("/groups/:group_id/", h.Get)
}
