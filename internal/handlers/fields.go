package handlers

import (
	"fmt"

	"github.com/diewo77/go-club/i18n"
	"github.com/diewo77/go-club/internal/intro"
	"github.com/diewo77/go-club/validation"
	"github.com/diewo77/go-club/view"
)

// FieldViews prepares the intro field table for rendering in lang, with the
// submitted values and their error messages.
func FieldViews(lang string, in intro.Input, errs *validation.Errors) []view.Field {
	out := make([]view.Field, 0, len(intro.Fields))
	for _, f := range intro.Fields {
		attrs := f.HTMLAttrs()
		if key, ok := attrs["placeholder"]; ok {
			attrs["placeholder"] = i18n.T(lang, key)
		}
		fv := view.Field{
			Name:   f.Name,
			Label:  i18n.T(lang, f.Label),
			Widget: string(f.Widget),
			Attrs:  attrs,
		}

		switch f.Widget {
		case intro.WidgetCheckbox:
			fv.Checked, _ = in.Value(f.Name).(bool)
		case intro.WidgetFile:
			fv.Value = in.AvatarURL
		default:
			fv.Value = fmt.Sprint(in.Value(f.Name))
		}
		if fv.Value == "" && f.Initial != "" {
			fv.Value = f.Initial
		}

		for _, c := range intro.ChoicesFor(f.Choices) {
			label := c.Label
			if c.Translate {
				label = i18n.T(lang, c.Label)
			}
			fv.Options = append(fv.Options, view.Option{Value: c.Value, Label: label, Selected: c.Value == fv.Value})
		}

		for _, fe := range errs.Field(f.Name) {
			fv.Errors = append(fv.Errors, i18n.Message(lang, fe.Field(), fe.Code(), fe.Args()...))
		}
		out = append(out, fv)
	}
	return out
}
