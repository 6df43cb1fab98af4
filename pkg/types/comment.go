package types

import "time"

// Comment is a user comment attached to an item. Comments are owned by
// their parent item and immutable once loaded.
type Comment struct {
	Common
	ParentID      int
	CommenterID   int
	Host          string
	Subject       string
	Body          string
	Date          time.Time
	Author        string
	PublishStatus int
}

// Tag returns the serialized type tag.
func (c *Comment) Tag() string { return "Comment" }
