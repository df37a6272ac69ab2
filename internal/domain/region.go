package domain

import "strings"

// Region is a market grouping with its own currency and country set.
type Region struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Locale       string   `json:"locale"`
	CurrencyCode string   `json:"currency_code"`
	Countries    []string `json:"countries"`
}

// HasCountry reports whether the ISO 3166-1 alpha-2 code belongs to the region.
func (r *Region) HasCountry(code string) bool {
	if r == nil {
		return false
	}
	for _, c := range r.Countries {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}
