package models

import "time"

// Comment is a reply to a post
type Comment struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	Created  time.Time `gorm:"autoCreateTime;index;not null" json:"created"`

	// Relationships
	Author User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Post   Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"post,omitempty"`
}

// AuthoredBy returns the id of the user who wrote the comment
func (c *Comment) AuthoredBy() uint {
	return c.AuthorID
}
