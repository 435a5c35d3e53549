package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixFolder     = "fld"
	PrefixAnnotation = "ann"
	PrefixGuide      = "gd"
	PrefixHistory    = "hist"
	PrefixPatch      = "patch"
	PrefixClient     = "client"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewFolderID() string     { return New(PrefixFolder) }
func NewAnnotationID() string { return New(PrefixAnnotation) }
func NewGuideID() string      { return New(PrefixGuide) }
func NewHistoryID() string    { return New(PrefixHistory) }
func NewPatchID() string      { return New(PrefixPatch) }
func NewClientID() string     { return New(PrefixClient) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
