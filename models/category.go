package model

import "fmt"

type Category string

const (
	CategoryLiveShows   Category = "Live shows"
	CategoryTourism     Category = "Tourism"
	CategoryFeverOrigin Category = "Fever Origin"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryLiveShows, CategoryTourism, CategoryFeverOrigin}

// ParseCategory returns the default category for an empty string.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryLiveShows, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
