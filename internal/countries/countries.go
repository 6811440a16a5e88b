// Package countries is the fixed country choice list of the intro form.
package countries

import "strings"

// Country is an ISO 3166-1 alpha-2 code with its display name.
type Country struct {
	Code string
	Name string
}

// All lists the selectable countries in display order.
var All = []Country{
	{"RU", "Россия"},
	{"UA", "Украина"},
	{"BY", "Беларусь"},
	{"KZ", "Казахстан"},
	{"AM", "Армения"},
	{"GE", "Грузия"},
	{"AZ", "Азербайджан"},
	{"UZ", "Узбекистан"},
	{"KG", "Кыргызстан"},
	{"MD", "Молдова"},
	{"LV", "Латвия"},
	{"LT", "Литва"},
	{"EE", "Эстония"},
	{"PL", "Польша"},
	{"CZ", "Чехия"},
	{"DE", "Германия"},
	{"AT", "Австрия"},
	{"CH", "Швейцария"},
	{"NL", "Нидерланды"},
	{"BE", "Бельгия"},
	{"FR", "Франция"},
	{"ES", "Испания"},
	{"PT", "Португалия"},
	{"IT", "Италия"},
	{"GB", "Великобритания"},
	{"IE", "Ирландия"},
	{"FI", "Финляндия"},
	{"SE", "Швеция"},
	{"NO", "Норвегия"},
	{"DK", "Дания"},
	{"CY", "Кипр"},
	{"ME", "Черногория"},
	{"RS", "Сербия"},
	{"TR", "Турция"},
	{"IL", "Израиль"},
	{"AE", "ОАЭ"},
	{"TH", "Таиланд"},
	{"ID", "Индонезия"},
	{"VN", "Вьетнам"},
	{"JP", "Япония"},
	{"SG", "Сингапур"},
	{"US", "США"},
	{"CA", "Канада"},
	{"MX", "Мексика"},
	{"AR", "Аргентина"},
	{"BR", "Бразилия"},
	{"AU", "Австралия"},
	{"NZ", "Новая Зеландия"},
}

var byCode = func() map[string]Country {
	m := make(map[string]Country, len(All))
	for _, c := range All {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the country for a code, case-insensitively.
func Lookup(code string) (Country, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Choices is the choice source for the country field.
type Choices struct{}

// Contains implements validation.ChoiceSource. Codes must be upper case,
// the form normalizes them before validation.
func (Choices) Contains(value string) bool {
	_, ok := byCode[value]
	return ok
}
