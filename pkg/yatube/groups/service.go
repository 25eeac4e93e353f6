package groups

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"gorm.io/gorm"
)

var slugRegex = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return slugRegex.MatchString(fl.Field().String())
		})
	}
}

// CreateGroupRequest describes a group created by an administrator
type CreateGroupRequest struct {
	Title       string `json:"title" binding:"required,notblank,max=200"`
	Slug        string `json:"slug" binding:"required,max=50,slug"`
	Description string `json:"description" binding:"required,notblank"`
}

// Create validates req and inserts the group. Title and slug clashes are validation errors.
func Create(ctx context.Context, db *gorm.DB, req CreateGroupRequest) (*models.Group, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return nil, apierror.FromBinding(err)
	}

	fields := apierror.FieldErrors{}
	var clashes []models.Group
	if err := db.WithContext(ctx).Where("title = ? OR slug = ?", req.Title, req.Slug).Find(&clashes).Error; err != nil {
		return nil, err
	}
	for _, g := range clashes {
		if g.Title == req.Title {
			fields.Add("title", "group with this title already exists.")
		}
		if g.Slug == req.Slug {
			fields.Add("slug", "group with this slug already exists.")
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	group := models.Group{Title: req.Title, Slug: req.Slug, Description: req.Description}
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierror.NonField("group with this title or slug already exists.")
		}
		return nil, err
	}
	return &group, nil
}
