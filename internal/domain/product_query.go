package domain

import (
	"sort"
	"strings"
)

// SortOrder names a product list ordering.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortName      SortOrder = "name"
	SortRating    SortOrder = "rating"
)

// Valid reports whether o is a known ordering. The empty order means newest.
func (o SortOrder) Valid() bool {
	switch o {
	case "", SortNewest, SortPriceAsc, SortPriceDesc, SortName, SortRating:
		return true
	}
	return false
}

// ProductQuery filters and orders a product list.
type ProductQuery struct {
	Category     Category
	FeaturedOnly bool
	InStockOnly  bool
	Search       string
	Sort         SortOrder
}

// Matches reports whether p passes every filter in q.
func (q ProductQuery) Matches(p Product) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.FeaturedOnly && !p.Featured {
		return false
	}
	if q.InStockOnly && !p.InStock() {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		if !strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			return false
		}
	}
	return true
}

// Apply returns the matching products of list in q's order. list is not modified.
func (q ProductQuery) Apply(list []Product) []Product {
	out := make([]Product, 0, len(list))
	for _, p := range list {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	SortProducts(out, q.Sort)
	return out
}

// SortProducts orders list in place. Ties keep newest first.
func SortProducts(list []Product, order SortOrder) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch order {
		case SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return an < bn
			}
		case SortRating:
			ar, br := a.Rating.Decimal, b.Rating.Decimal
			if a.Rating.Valid != b.Rating.Valid {
				return a.Rating.Valid
			}
			if !ar.Equal(br) {
				return ar.GreaterThan(br)
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
