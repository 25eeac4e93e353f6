// Package follows manages the subscription edges between users.
package follows

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikepea/yatube/pkg/yatube/apierror"
	"github.com/mikepea/yatube/pkg/yatube/models"
	"github.com/mikepea/yatube/pkg/yatube/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrFollowSelf       = apierror.NonField("cannot follow self")
	ErrAlreadyFollowing = apierror.NonField("already following")
)

// Service creates, lists and removes follow edges on behalf of an acting user
type Service struct {
	db *gorm.DB
}

// NewService creates a follow service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Validate checks that actor may start following target. The self check runs first,
// so a self-follow is always reported as such.
func Validate(ctx context.Context, tx *gorm.DB, actor, target *models.User) error {
	if actor.ID == target.ID {
		return ErrFollowSelf
	}

	var n int64
	err := tx.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND following_id = ?", actor.ID, target.ID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("check follow: %w", err)
	}
	if n > 0 {
		return ErrAlreadyFollowing
	}
	return nil
}

// Follow creates the edge actor -> target. Validation and insert share one transaction;
// the unique index settles concurrent duplicates, and such a loser gets the raw
// constraint error back.
func (s *Service) Follow(ctx context.Context, actor, target *models.User) (*models.Follow, error) {
	var follow models.Follow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Validate(ctx, tx, actor, target); err != nil {
			return err
		}
		follow = models.Follow{UserID: actor.ID, FollowingID: target.ID}
		if err := tx.Omit(clause.Associations).Create(&follow).Error; err != nil {
			return fmt.Errorf("create follow: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	follow.User = *actor
	follow.Following = *target
	return &follow, nil
}

// Unfollow removes the edge actor -> target. It returns gorm.ErrRecordNotFound when
// there is no such edge.
func (s *Service) Unfollow(ctx context.Context, actor, target *models.User) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND following_id = ?", actor.ID, target.ID).
		Delete(&models.Follow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns the edges where actor is the follower. search is split on whitespace and
// every term must occur in the followed username, ignoring case.
func (s *Service) List(ctx context.Context, actor *models.User, search string, page *pagination.Page) ([]models.Follow, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Follow{}).
		Joins("JOIN users AS targets ON targets.id = follows.following_id").
		Where("follows.user_id = ?", actor.ID).
		Order("follows.id")

	for _, term := range strings.Fields(search) {
		query = query.Where("LOWER(targets.username) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(term))+"%")
	}

	var follows []models.Follow
	count, err := page.Find(query, &follows, "User", "Following")
	if err != nil {
		return nil, 0, err
	}
	return follows, count, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
