// Package intro is the member intro form: a flat constraint table plus the
// nickname validator, binding of submitted values and the cleaned result.
package intro

import (
	"context"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/go-club/internal/countries"
	"github.com/diewo77/go-club/internal/models"
	"github.com/diewo77/go-club/validation"
)

// Input is the raw submission, trimmed.
type Input struct {
	Slug                  string
	FullName              string
	Email                 string
	City                  string
	Country               string
	Bio                   string
	Company               string
	Position              string
	Intro                 string
	EmailDigestType       string
	PrivacyPolicyAccepted bool
	Avatar                *multipart.FileHeader
	// AvatarURL is the current avatar, shown when no new file is uploaded.
	AvatarURL string
}

// Value returns the submitted value of a table field for the engine.
func (in Input) Value(field string) any {
	switch field {
	case "slug":
		return in.Slug
	case "full_name":
		return in.FullName
	case "email":
		return in.Email
	case "city":
		return in.City
	case "country":
		return in.Country
	case "bio":
		return in.Bio
	case "company":
		return in.Company
	case "position":
		return in.Position
	case "intro":
		return in.Intro
	case "email_digest_type":
		return in.EmailDigestType
	case "privacy_policy_accepted":
		return in.PrivacyPolicyAccepted
	}
	return nil
}

// Bind reads a submitted form. Surrounding whitespace is dropped.
func Bind(values url.Values, avatar *multipart.FileHeader) Input {
	get := func(k string) string { return strings.TrimSpace(values.Get(k)) }
	return Input{
		Slug:                  get("slug"),
		FullName:              get("full_name"),
		Email:                 models.NormalizeEmail(get("email")),
		City:                  get("city"),
		Country:               strings.ToUpper(get("country")),
		Bio:                   get("bio"),
		Company:               get("company"),
		Position:              get("position"),
		Intro:                 get("intro"),
		EmailDigestType:       get("email_digest_type"),
		PrivacyPolicyAccepted: checked(get("privacy_policy_accepted")),
		Avatar:                avatar,
	}
}

func checked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Initial prefills the form from an existing user (edit mode).
func Initial(u *models.User) Input {
	in := Input{EmailDigestType: string(models.DefaultDigestType)}
	if u == nil {
		return in
	}
	in.Slug = u.Slug
	in.FullName = u.FullName
	in.Email = u.Email
	in.City = u.City
	in.Country = u.Country
	in.Bio = u.Bio
	in.Company = u.Company
	in.Position = u.Position
	in.AvatarURL = u.AvatarURL
	in.PrivacyPolicyAccepted = u.PrivacyPolicyAcceptedAt != nil
	if u.EmailDigestType != "" {
		in.EmailDigestType = string(u.EmailDigestType)
	}
	if u.Intro != nil {
		in.Intro = u.Intro.Text
	}
	return in
}

// AvatarCleaner turns an upload into a stored image URL and can take a
// stored image back when the submission is not saved after all.
type AvatarCleaner interface {
	Clean(ctx context.Context, fh *multipart.FileHeader) (string, error)
	Discard(ctx context.Context, url string) error
}

// Cleaned holds validated values ready for persistence.
type Cleaned struct {
	Slug            string
	FullName        string
	Email           string
	AvatarURL       string // empty when no new avatar was uploaded
	City            string
	Country         string
	Bio             string
	Company         string
	Position        string
	IntroText       string
	EmailDigestType models.DigestType
}

// Apply copies the cleaned values onto u. Consent is stamped once.
func (c *Cleaned) Apply(u *models.User, now time.Time) {
	u.Slug = c.Slug
	u.FullName = c.FullName
	u.Email = c.Email
	if c.AvatarURL != "" {
		u.AvatarURL = c.AvatarURL
	}
	u.City = c.City
	u.Country = c.Country
	u.Bio = c.Bio
	u.Company = c.Company
	u.Position = c.Position
	u.EmailDigestType = c.EmailDigestType
	if u.PrivacyPolicyAcceptedAt == nil {
		t := now.UTC()
		u.PrivacyPolicyAcceptedAt = &t
	}
}

// Form validates intro submissions.
type Form struct {
	engine  *validation.Engine
	slugs   *SlugValidator
	avatars AvatarCleaner
}

// NewForm wires the constraint engine with the country and digest choice
// sources. avatars may be nil, in which case uploads are ignored.
func NewForm(slugs SlugLookup, avatars AvatarCleaner) *Form {
	engine := validation.New()
	engine.RegisterChoices(ChoicesCountry, countries.Choices{})
	engine.RegisterChoices(ChoicesDigest, models.DigestChoices{})
	return &Form{engine: engine, slugs: NewSlugValidator(slugs), avatars: avatars}
}

// Validate checks every field of in. editing is the user whose intro is
// edited, or nil for a new profile. Field problems are collected in the
// returned bag; the error return is reserved for infrastructure failures.
func (f *Form) Validate(ctx context.Context, in Input, editing *models.User) (*Cleaned, *validation.Errors, error) {
	errs := validation.NewErrors()

	for _, field := range Fields {
		if field.Custom {
			continue
		}
		fes, err := f.engine.Check(field.Name, in.Value(field.Name), field.Rules())
		if err != nil {
			return nil, nil, err
		}
		errs.Add(fes...)
	}

	var excludeID *uint
	if editing != nil && editing.ID != 0 {
		id := editing.ID
		excludeID = &id
	}
	slug, err := f.slugs.Clean(ctx, in.Slug, excludeID)
	if err != nil {
		fe, ok := validation.AsFieldError(err)
		if !ok {
			return nil, nil, err
		}
		errs.Add(fe)
	}

	// Uploads are only stored for otherwise valid submissions.
	var avatarURL string
	if in.Avatar != nil && f.avatars != nil && !errs.Has() {
		avatarURL, err = f.avatars.Clean(ctx, in.Avatar)
		if err != nil {
			fe, ok := validation.AsFieldError(err)
			if !ok {
				return nil, nil, err
			}
			errs.Add(fe)
		}
	}

	if errs.Has() {
		return nil, errs, nil
	}
	return &Cleaned{
		Slug:            slug,
		FullName:        in.FullName,
		Email:           in.Email,
		AvatarURL:       avatarURL,
		City:            in.City,
		Country:         in.Country,
		Bio:             in.Bio,
		Company:         in.Company,
		Position:        in.Position,
		IntroText:       in.Intro,
		EmailDigestType: models.DigestType(in.EmailDigestType),
	}, nil, nil
}

// DiscardAvatar removes the avatar stored for c when it could not be saved.
func (f *Form) DiscardAvatar(ctx context.Context, c *Cleaned) error {
	if f.avatars == nil || c == nil || c.AvatarURL == "" {
		return nil
	}
	return f.avatars.Discard(ctx, c.AvatarURL)
}
