package intro

import (
	"strconv"
	"strings"

	"github.com/diewo77/go-club/internal/countries"
	"github.com/diewo77/go-club/internal/models"
)

// Widget is the HTML control used to render a field.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetEmail    Widget = "email"
	WidgetTextarea Widget = "textarea"
	WidgetFile     Widget = "file"
	WidgetSelect   Widget = "select"
	WidgetRadio    Widget = "radio"
	WidgetCheckbox Widget = "checkbox"
)

// Choice sources registered on the validation engine.
const (
	ChoicesCountry = "country"
	ChoicesDigest  = "email_digest_type"
)

// Field declares one form field: its constraints and its rendering hints.
type Field struct {
	Name      string
	Label     string // i18n key
	Widget    Widget
	Required  bool
	MinLength int
	MaxLength int
	Choices   string // registered choice source, for select and radio widgets
	Initial   string
	// Custom fields are cleaned by a dedicated validator instead of Rules.
	Custom bool
	Attrs  map[string]string
}

// Rules renders the field constraints as an engine rule string.
func (f Field) Rules() string {
	var rules []string
	if f.Required {
		rules = append(rules, "required")
	} else {
		rules = append(rules, "omitempty")
	}
	if f.Widget == WidgetEmail {
		rules = append(rules, "email")
	}
	if f.MinLength > 0 {
		rules = append(rules, "min="+strconv.Itoa(f.MinLength))
	}
	if f.MaxLength > 0 {
		rules = append(rules, "max="+strconv.Itoa(f.MaxLength))
	}
	if f.Choices != "" {
		rules = append(rules, "choice="+f.Choices)
	}
	return strings.Join(rules, ",")
}

// HTMLAttrs merges the constraint-derived attributes with the declared ones.
func (f Field) HTMLAttrs() map[string]string {
	attrs := make(map[string]string, len(f.Attrs)+3)
	if f.Required && f.Widget != WidgetRadio {
		attrs["required"] = "required"
	}
	if f.MinLength > 0 {
		attrs["minlength"] = strconv.Itoa(f.MinLength)
	}
	if f.MaxLength > 0 {
		attrs["maxlength"] = strconv.Itoa(f.MaxLength)
	}
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	return attrs
}

// Fields is the constraint table of the intro form, in display order.
var Fields = []Field{
	{
		Name: "slug", Label: "field.slug", Widget: WidgetText,
		Required: true, MinLength: 3, MaxLength: 32, Custom: true,
		Attrs: map[string]string{"pattern": "[A-Za-z0-9_-]+"},
	},
	{Name: "full_name", Label: "field.full_name", Widget: WidgetText, Required: true, MaxLength: 128},
	{Name: "email", Label: "field.email", Widget: WidgetEmail, Required: true},
	{
		Name: "avatar", Label: "field.avatar", Widget: WidgetFile, Custom: true,
		Attrs: map[string]string{"accept": "image/jpeg,image/png,image/gif"},
	},
	{Name: "city", Label: "field.city", Widget: WidgetText, Required: true, MaxLength: 120},
	{Name: "country", Label: "field.country", Widget: WidgetSelect, Required: true, Choices: ChoicesCountry},
	{Name: "bio", Label: "field.bio", Widget: WidgetTextarea, MaxLength: 512},
	{Name: "company", Label: "field.company", Widget: WidgetText, MaxLength: 128},
	{Name: "position", Label: "field.position", Widget: WidgetText, Required: true, MaxLength: 128},
	{
		Name: "intro", Label: "field.intro", Widget: WidgetTextarea,
		Required: true, MinLength: 400, MaxLength: 10000,
		Attrs: map[string]string{"class": "markdown-editor-full", "placeholder": "intro.placeholder"},
	},
	{
		Name: "email_digest_type", Label: "field.email_digest_type", Widget: WidgetRadio,
		Required: true, Choices: ChoicesDigest, Initial: string(models.DefaultDigestType),
	},
	{Name: "privacy_policy_accepted", Label: "field.privacy_policy_accepted", Widget: WidgetCheckbox, Required: true},
}

// FieldByName looks a field up in the table.
func FieldByName(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Choice is one option of a select or radio field.
type Choice struct {
	Value string
	Label string // display text, or an i18n key when Translate is set
	// Translate marks Label as an i18n key.
	Translate bool
}

// ChoicesFor returns the options of a choice source.
func ChoicesFor(source string) []Choice {
	switch source {
	case ChoicesCountry:
		out := make([]Choice, 0, len(countries.All))
		for _, c := range countries.All {
			out = append(out, Choice{Value: c.Code, Label: c.Name})
		}
		return out
	case ChoicesDigest:
		out := make([]Choice, 0, len(models.DigestTypes))
		for _, d := range models.DigestTypes {
			out = append(out, Choice{Value: string(d), Label: "digest." + string(d), Translate: true})
		}
		return out
	}
	return nil
}
