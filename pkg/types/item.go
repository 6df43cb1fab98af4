package types

import (
	"fmt"
	"path"
	"time"
)

// ItemKind discriminates the concrete item variants. The values are
// the serialized type tags.
type ItemKind string

const (
	KindAlbum     ItemKind = "AlbumItem"
	KindPhoto     ItemKind = "PhotoItem"
	KindMovie     ItemKind = "MovieItem"
	KindLink      ItemKind = "LinkItem"
	KindAnimation ItemKind = "AnimationItem"
	KindData      ItemKind = "DataItem"
	KindUnknown   ItemKind = "UnknownItem"
)

// Item is a visible gallery node: an album, photo, movie, link,
// animation, data file, or unknown leftover. Exactly one variant
// payload is non-nil, matching Kind (none for KindUnknown).
type Item struct {
	Common
	ParentID      int   // 0 marks the root album
	Parent        *Item // nil for the root album
	PathComponent string

	Title       string
	Summary     string
	Description string
	Keywords    string

	OwnerID         int
	Owner           *User
	OrderWeight     int
	ViewCount       int
	OriginationTime time.Time
	Hidden          bool

	Kind      ItemKind
	Album     *AlbumPayload
	Photo     *PhotoPayload
	Movie     *MoviePayload
	Animation *AnimationPayload
	Data      *DataPayload
	External  *LinkPayload

	// Subitems is ordered by (order weight, id); Comments by
	// (date, id); Derivatives by (derivative order, id). The
	// orderings are established at load time and never change.
	Subitems    []*Item
	Comments    []*Comment
	Derivatives []*Derivative

	// AccessList is shared: items subscribed to the same access
	// list id hold the same pointer.
	AccessList *AccessList

	// HilightTarget holds the resolved hilight for albums whose
	// derivative records were not carried, such as documents loaded
	// from a dump that omitted derivatives. Hilight prefers it over
	// walking the derivative chain.
	HilightTarget *Item
}

// AlbumPayload carries the album-only columns and attachments.
type AlbumPayload struct {
	Theme            string
	OrderBy          string // pipe-delimited compound sort spec
	OrderDirection   string // pipe-delimited, parallel to OrderBy
	PluginParameters Parameters
	DerivativePrefs  DerivativePrefs
}

// PhotoPayload carries the photo-only columns.
type PhotoPayload struct {
	Width  int
	Height int
}

// MoviePayload carries the movie-only columns.
type MoviePayload struct {
	Width    int
	Height   int
	Duration int // seconds
}

// AnimationPayload carries the animation-only columns.
type AnimationPayload struct {
	Width  int
	Height int
}

// DataPayload carries the data-item-only columns.
type DataPayload struct {
	MimeType string
	Size     int
}

// LinkPayload carries the external-link-item column.
type LinkPayload struct {
	URL string
}

// Tag returns the serialized type tag for the item's variant.
func (it *Item) Tag() string { return string(it.Kind) }

// IsRoot reports whether this is the designated root album.
func (it *Item) IsRoot() bool { return it.ParentID == 0 }

// Path derives the item's path below the gallery root by joining the
// parent's path with this item's path component. The root album has
// the empty path and must have no path component; every other item
// must have one. Either violation is a model integrity error.
func (it *Item) Path() (string, error) {
	if it.Parent == nil {
		if it.PathComponent != "" {
			return "", fmt.Errorf("%w: item %d has component %q",
				ErrRootPathComponent, it.ID, it.PathComponent)
		}
		return "", nil
	}
	parent, err := it.Parent.Path()
	if err != nil {
		return "", err
	}
	if it.PathComponent == "" {
		return "", fmt.Errorf("%w: item %d under %q",
			ErrMissingPathComponent, it.ID, parent)
	}
	return path.Join(parent, it.PathComponent), nil
}

// Hilight resolves the album's representative item by following the
// source chain of its single top-level derivative through any nested
// derivative layers. It returns nil for non-albums and for albums
// with no derivative record. More than one top-level derivative, or a
// chain ending anywhere but an item, is a model integrity error.
func (it *Item) Hilight() (*Item, error) {
	if it.Album == nil {
		return nil, nil
	}
	if it.HilightTarget != nil {
		return it.HilightTarget, nil
	}
	if len(it.Derivatives) == 0 {
		return nil, nil
	}
	if len(it.Derivatives) > 1 {
		return nil, fmt.Errorf("%w: album %d has %d",
			ErrMultipleThumbnails, it.ID, len(it.Derivatives))
	}
	src := it.Derivatives[0].Source
	for {
		d, ok := src.(*Derivative)
		if !ok {
			break
		}
		src = d.Source
	}
	target, ok := src.(*Item)
	if !ok {
		return nil, fmt.Errorf("%w: album %d", ErrBrokenDerivative, it.ID)
	}
	return target, nil
}
