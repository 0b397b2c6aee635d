package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/logger"
)

// FieldsFromParams maps a raw parameter schema into config fields.
func FieldsFromParams(params []api.Param) []ConfigField {
	fields := make([]ConfigField, 0, len(params))
	for _, p := range params {
		fields = append(fields, fieldFromParam(p))
	}
	return fields
}

func fieldFromParam(p api.Param) ConfigField {
	f := ConfigField{
		Name:        p.Name,
		Label:       p.Label,
		Kind:        kindOf(p.Type),
		Placeholder: p.Description,
		OptionsURL:  p.OptionsURL,
		Required:    p.Required,
	}
	if f.Label == "" {
		f.Label = labelFromName(p.Name)
	}
	// An options URL only makes sense on a select.
	if f.OptionsURL != "" && f.Kind != KindSelect {
		logger.Debug("Param %s has options_url but type %q, treating as select", p.Name, p.Type)
		f.Kind = KindSelect
	}
	for _, o := range p.Options {
		f.Options = append(f.Options, Option{ID: o.ID, Name: o.Name})
	}
	return f
}

func kindOf(paramType string) FieldKind {
	switch paramType {
	case "integer":
		return KindNumber
	case "select":
		return KindSelect
	case "textarea":
		return KindTextarea
	default:
		return KindText
	}
}

// labelFromName turns "playlist_id" into "Playlist id".
func labelFromName(name string) string {
	s := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
