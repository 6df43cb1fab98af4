package types

import "errors"

// Model integrity errors. These indicate that the source data or the
// model's assumptions about it are broken, and abort the run.
var (
	ErrMissingPathComponent = errors.New("non-root entity has no path component")
	ErrRootPathComponent    = errors.New("root entity has a path component")
	ErrMultipleThumbnails   = errors.New("album has more than one top-level derivative")
	ErrBrokenDerivative     = errors.New("derivative chain does not end at an item")
	ErrUnknownEntityType    = errors.New("unknown entity type discriminator")
	ErrUnknownPrincipal     = errors.New("access entry resolves to no known user, group, or item")
	ErrUnknownTag           = errors.New("unknown document tag")
	ErrUnrepresentable      = errors.New("value has no known serialization shape")
	ErrNoRootAlbum          = errors.New("no root album found")
)
