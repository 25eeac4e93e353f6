package models

// Follow is a directed subscription edge: User follows Following.
// The pair is unique and a user can never follow themselves.
type Follow struct {
	ID          uint `gorm:"primarykey" json:"id"`
	UserID      uint `gorm:"not null;index;uniqueIndex:idx_follow_pair;check:chk_follow_not_self,user_id <> following_id" json:"user_id"`
	FollowingID uint `gorm:"not null;index;uniqueIndex:idx_follow_pair" json:"following_id"`

	// Relationships
	User      User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Following User `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"following,omitempty"`
}
