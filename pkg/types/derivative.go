package types

// Derivative is a generated artifact (thumbnail, resize) of a source
// entity. Source may itself be another Derivative; chains terminate at
// a non-derivative entity.
type Derivative struct {
	Common
	ParentID             int
	SourceID             int
	Source               Entity // *Item, or *Derivative for chained entries
	Operations           string
	Order                int
	Size                 int
	Type                 int
	MimeType             string
	PostFilterOperations string
	Broken               bool

	// Image is non-nil for derivative-image rows.
	Image *DerivativeImagePayload
}

// DerivativeImagePayload carries the image-derivative columns.
type DerivativeImagePayload struct {
	Width  int
	Height int
}

// Tag returns the serialized type tag.
func (d *Derivative) Tag() string {
	if d.Image != nil {
		return "DerivativeImage"
	}
	return "Derivative"
}

// DerivativePrefs groups an album's derivative preference rows by
// derivative type; the operation strings keep their row order.
type DerivativePrefs map[int][]string
