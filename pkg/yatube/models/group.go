package models

// Group is a named category posts can be filed under.
// Groups are created by administrators; the API only reads them.
type Group struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Title       string `gorm:"size:200;uniqueIndex;not null" json:"title"`
	Slug        string `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text;not null" json:"description"`
}
