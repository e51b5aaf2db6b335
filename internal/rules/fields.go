package rules

import (
	"context"

	"github.com/tabpal/tabpal/internal/state"
)

// MatchField names the tab attribute a rule's pattern is tested against.
type MatchField string

const (
	FieldFileName     MatchField = "fileName"
	FieldURI          MatchField = "uri"
	FieldTabLabel     MatchField = "tabLabel"
	FieldTabInputType MatchField = "tabInputType"
	FieldViewType     MatchField = "viewType"
	FieldLanguageID   MatchField = "languageId"
)

// MatchFields lists every field in a stable order.
var MatchFields = []MatchField{
	FieldFileName,
	FieldURI,
	FieldTabLabel,
	FieldTabInputType,
	FieldViewType,
	FieldLanguageID,
}

var matchFieldNames = map[string]MatchField{
	string(FieldFileName):     FieldFileName,
	string(FieldURI):          FieldURI,
	string(FieldTabLabel):     FieldTabLabel,
	string(FieldTabInputType): FieldTabInputType,
	string(FieldViewType):     FieldViewType,
	string(FieldLanguageID):   FieldLanguageID,
}

// ParseMatchField resolves a declared field name.
func ParseMatchField(name string) (MatchField, bool) {
	field, ok := matchFieldNames[name]
	return field, ok
}

// LanguageResolver obtains the content language identifier for a resource.
// Resolution requires the host to open the resource, so it is asynchronous
// and fallible.
type LanguageResolver interface {
	LanguageID(ctx context.Context, uri string) (string, error)
}

// Resolve extracts the subject string for one field of a tab. Resolution
// never fails loudly: any lookup error or inapplicable field yields "",
// which simply fails to match non-empty patterns.
func Resolve(ctx context.Context, tab state.Tab, field MatchField, langs LanguageResolver) string {
	switch field {
	case FieldFileName:
		return tab.Input.Path()
	case FieldURI:
		return tab.Input.Resource()
	case FieldTabLabel:
		return tab.Label
	case FieldTabInputType:
		return string(tab.Input.Kind)
	case FieldViewType:
		return tab.Input.View()
	case FieldLanguageID:
		uri := tab.Input.Resource()
		if uri == "" || langs == nil {
			return ""
		}
		id, err := langs.LanguageID(ctx, uri)
		if err != nil {
			return ""
		}
		return id
	default:
		return ""
	}
}
