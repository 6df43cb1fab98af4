// Package sigal projects a normalized gallery tree onto the metadata
// conventions of the sigal static gallery generator: one sidecar file
// per album or media item, plus symlinks for linked items.
package sigal

import (
	"path"
	"strings"
)

// Fields is the reconciled content for one item. Gallery items carry
// title, summary, and description; sigal has only title and
// description, so the summary must be folded away. Summary stays
// non-empty only when it could not be eliminated.
type Fields struct {
	Title       string
	Summary     string
	Description string
}

// reconcile reduces (title, summary, description) plus the
// filename-derived default title down to (title, description). The
// strip callback renders markup to plain text for the title, which
// never carries formatting. Applying reconcile to its own output is a
// no-op.
func reconcile(title, summary, description, filename string, strip func(string) string) Fields {
	stem := strings.TrimSuffix(filename, path.Ext(filename))

	if title == filename || title == stem {
		title = ""
	}
	if summary != "" {
		switch {
		case summary == filename, summary == stem:
			summary = ""
		case title != "" && summary == title:
			summary = ""
		case description != "" && summary == description:
			summary = ""
		}
	}
	if description != "" {
		switch {
		case description == filename, description == stem:
			description = ""
		case title != "" && description == title:
			description = ""
		}
	}

	switch {
	case summary != "" && title == "":
		title, summary = strip(summary), ""
	case summary != "" && description == "":
		description, summary = summary, ""
	}

	if title == "" {
		title = stem
	}
	return Fields{Title: title, Summary: summary, Description: description}
}
