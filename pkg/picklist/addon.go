package picklist

import (
	"regexp"
	"strconv"
	"strings"
)

// AddOn is one parsed add-on token.
type AddOn struct {
	Name     string
	Quantity int
}

// Multiplier forms, tried in order. Group 1 or 2 holds the count depending
// on whether it leads or trails.
var (
	leadingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+)\s*[xX×]\s+(.+)$`), // 2x Carrots, 2 x Carrots, 2× Carrots
		regexp.MustCompile(`^(\d+)\s+(.+)$`),         // 2 Carrots
	}
	trailingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(.+?)\s+[xX×]\s*(\d+)$`), // Carrots x2, Carrots x 2, Carrots ×2
		regexp.MustCompile(`^(.+?)\s*\((\d+)\)$`),     // Carrots (2)
		regexp.MustCompile(`^(.+?)\s*\*\s*(\d+)$`),    // Carrots * 2
	}
)

// ParseAddOn separates a leading or trailing multiplier from the item name.
// Tokens without a recognised multiplier count once under their trimmed text.
func ParseAddOn(token string) AddOn {
	token = strings.TrimSpace(token)

	for _, re := range leadingPatterns {
		if m := re.FindStringSubmatch(token); m != nil {
			if a, ok := addOn(m[2], m[1]); ok {
				return a
			}
		}
	}
	for _, re := range trailingPatterns {
		if m := re.FindStringSubmatch(token); m != nil {
			if a, ok := addOn(m[1], m[2]); ok {
				return a
			}
		}
	}
	return AddOn{Name: token, Quantity: 1}
}

func addOn(name, count string) (AddOn, bool) {
	name = strings.TrimSpace(name)
	n, err := strconv.Atoi(count)
	if err != nil || name == "" {
		return AddOn{}, false
	}
	return AddOn{Name: name, Quantity: n}, true
}
