// Package i18n translates labels and validation codes. Russian is the
// default language; English is the only alternative.
package i18n

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

const (
	LangRU  = "ru"
	LangEN  = "en"
	Default = LangRU
)

var (
	supported = []string{LangRU, LangEN}
	matcher   = language.NewMatcher([]language.Tag{language.Russian, language.English})
)

var catalog = map[string]map[string]string{
	LangRU: {
		"required":         "Обязательное поле",
		"invalid_format":   "Неверный формат",
		"duplicate":        "Такое значение уже используется",
		"too_short":        "Минимум %d символов",
		"too_long":         "Максимум %d символов",
		"invalid_choice":   "Выберите один из вариантов",
		"file_too_large":   "Файл слишком большой",
		"unsupported_file": "Поддерживаются только JPG, PNG и GIF",

		"slug.invalid_format":              "В нике использованы недопустимые знаки",
		"slug.duplicate":                   "Пользователь с таким ником уже существует. Выберите другой",
		"email.duplicate":                  "Этот e-mail уже зарегистрирован",
		"email.invalid_format":             "Введите корректный e-mail",
		"avatar.invalid_format":            "Не удалось прочитать изображение",
		"privacy_policy_accepted.required": "Без согласия на обработку данных мы не сможем вас принять",

		"field.slug":                    "Никнейм",
		"field.full_name":               "Имя",
		"field.email":                   "E-mail",
		"field.avatar":                  "Аватар",
		"field.city":                    "Город",
		"field.country":                 "Страна",
		"field.bio":                     "Краткая строчка о себе",
		"field.company":                 "Компания",
		"field.position":                "Должность",
		"field.intro":                   "#intro",
		"field.email_digest_type":       "Подписка на дайджест",
		"field.privacy_policy_accepted": "Даю согласие на обработку своих персональных данных",
		"field.password":                "Пароль",

		"intro.placeholder": "Расскажите Клубу о себе...",
		"intro.title":       "Расскажите о себе",
		"intro.saved":       "Профиль сохранён",
		"intro.submit":      "Сохранить",

		"digest.daily":  "Ежедневный",
		"digest.weekly": "Еженедельный",
		"digest.no":     "Не присылать",

		"auth.login":               "Войти",
		"auth.logout":              "Выйти",
		"auth.signup":              "Регистрация",
		"auth.invalid_credentials": "Неверный e-mail или пароль",
		"auth.email_taken":         "Этот e-mail уже зарегистрирован",
		"auth.password_too_short":  "Пароль должен быть не короче 8 символов",

		"error.forbidden": "Недостаточно прав",
		"error.internal":  "Что-то пошло не так, попробуйте ещё раз",
	},
	LangEN: {
		"required":         "This field is required",
		"invalid_format":   "Invalid format",
		"duplicate":        "This value is already taken",
		"too_short":        "At least %d characters",
		"too_long":         "At most %d characters",
		"invalid_choice":   "Select a valid choice",
		"file_too_large":   "File is too large",
		"unsupported_file": "Only JPG, PNG and GIF images are supported",

		"slug.invalid_format":              "Nickname contains forbidden characters",
		"slug.duplicate":                   "A user with this nickname already exists. Pick another one",
		"email.duplicate":                  "This e-mail is already registered",
		"email.invalid_format":             "Enter a valid e-mail address",
		"avatar.invalid_format":            "Could not read the image",
		"privacy_policy_accepted.required": "We cannot accept you without consent to data processing",

		"field.slug":                    "Nickname",
		"field.full_name":               "Name",
		"field.email":                   "E-mail",
		"field.avatar":                  "Avatar",
		"field.city":                    "City",
		"field.country":                 "Country",
		"field.bio":                     "A line about yourself",
		"field.company":                 "Company",
		"field.position":                "Position",
		"field.intro":                   "#intro",
		"field.email_digest_type":       "Digest subscription",
		"field.privacy_policy_accepted": "I consent to the processing of my personal data",
		"field.password":                "Password",

		"intro.placeholder": "Tell the Club about yourself...",
		"intro.title":       "Tell us about yourself",
		"intro.saved":       "Profile saved",
		"intro.submit":      "Save",

		"digest.daily":  "Daily",
		"digest.weekly": "Weekly",
		"digest.no":     "Don't send",

		"auth.login":               "Log in",
		"auth.logout":              "Log out",
		"auth.signup":              "Sign up",
		"auth.invalid_credentials": "Invalid e-mail or password",
		"auth.email_taken":         "This e-mail is already registered",
		"auth.password_too_short":  "Password must be at least 8 characters",

		"error.forbidden": "Forbidden",
		"error.internal":  "Something went wrong, please retry",
	},
}

// Normalize maps any language string onto a supported language.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range supported {
		if lang == l || strings.HasPrefix(lang, l+"-") {
			return l
		}
	}
	return Default
}

// DetectLanguage picks the best supported language from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return Default
	}
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	return supported[idx]
}

// T returns the translation of code, falling back to the default language,
// then to the code itself.
func T(lang, code string) string {
	if msg, ok := lookup(lang, code); ok {
		return msg
	}
	return code
}

// Message translates a validation code for a given field. A field-specific
// entry ("slug.duplicate") wins over the generic one ("duplicate").
func Message(lang, field, code string, args ...any) string {
	msg, ok := lookup(lang, field+"."+code)
	if !ok {
		msg = T(lang, code)
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

func lookup(lang, key string) (string, bool) {
	if msg, ok := catalog[Normalize(lang)][key]; ok {
		return msg, true
	}
	msg, ok := catalog[Default][key]
	return msg, ok
}

type langKey struct{}

// WithLang stores the request language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, Normalize(lang))
}

// LangFromContext returns the request language, or Default.
func LangFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return Default
}
