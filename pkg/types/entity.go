package types

import "time"

// Common holds the columns shared by every entity in the hierarchy.
type Common struct {
	ID               int
	CreationTime     time.Time
	ModificationTime time.Time
	SerialNumber     int
	IsLinkable       bool
	LinkID           int   // 0 when the entity links to nothing
	Link             *Item // resolved link target, nil when LinkID is 0
}

// Base returns the shared column block. It exists so that every
// concrete entity satisfies Entity through embedding.
func (c *Common) Base() *Common { return c }

// Entity is the closed set of concrete gallery entities. The tag names
// the concrete variant and doubles as the serialized type tag.
//
// Implemented by *Item, *Comment, *Derivative, *User and *Group; the
// set is fixed, there is no dynamic extension.
type Entity interface {
	Base() *Common
	Tag() string
}
