package models

import "time"

// Post is a user-authored text entry, optionally filed under a group and
// optionally carrying an image.
type Post struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	Text     string    `gorm:"type:text;not null" json:"text"`
	PubDate  time.Time `gorm:"autoCreateTime;not null" json:"pub_date"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Image    *string   `gorm:"size:255" json:"image"` // storage name, not a URL
	GroupID  *uint     `gorm:"index" json:"group_id"`

	// Relationships
	// No has-many back-references: gorm would build the foreign keys from those
	// and drop the cascade rules declared here.
	Author User   `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Group  *Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"group,omitempty"`
}

// AuthoredBy returns the id of the user who wrote the post
func (p *Post) AuthoredBy() uint {
	return p.AuthorID
}
