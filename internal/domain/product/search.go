package product

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips Vietnamese diacritics so that "Điện thoại"
// and "dien thoai" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// đ has no decomposition.
	out = strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
	return strings.ToLower(out)
}

// Search returns the products whose name, brand or category contain every
// word of query, ignoring case and diacritics. Catalog order is preserved.
// An empty query returns all products.
func Search(products []Product, query string) []Product {
	terms := strings.Fields(Fold(query))
	if len(terms) == 0 {
		return products
	}

	out := make([]Product, 0, len(products))
	for _, p := range products {
		haystack := Fold(p.Name + " " + p.Brand + " " + p.Category)
		if containsAll(haystack, terms) {
			out = append(out, p)
		}
	}
	return out
}

func containsAll(haystack string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
