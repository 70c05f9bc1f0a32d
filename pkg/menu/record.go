// Package menu defines the menu record produced by the extraction pipeline
// and the aggregate statistics computed over a batch of records.
package menu

import "fmt"

// BaseOrigin is the origin relative image URLs are resolved against.
const BaseOrigin = "https://m.place.naver.com"

// CategoryUncategorized is the category the placeholder record carries.
const CategoryUncategorized = "기타"

// Record is one menu line item.
type Record struct {
	Name        string   `json:"name" yaml:"name"`
	Price       *int     `json:"price" yaml:"price"`
	Description *string  `json:"description,omitempty" yaml:"description,omitempty"`
	Category    *string  `json:"category,omitempty" yaml:"category,omitempty"`
	ImageURL    *string  `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Rating      *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewCount int      `json:"review_count" yaml:"review_count"`
	IsPopular   bool     `json:"is_popular" yaml:"is_popular"`
	IsSignature bool     `json:"is_signature" yaml:"is_signature"`
	SourceID    string   `json:"source_id" yaml:"source_id"`
}

// SourceID builds the identifier tying a record back to its store and
// position.
func SourceID(storeID string, index int) string {
	return fmt.Sprintf("%s_%d", storeID, index)
}

// DefaultSourceID is the identifier of the placeholder record.
func DefaultSourceID(storeID string) string {
	return storeID + "_default"
}

// HasPrice reports whether the record carries a known price.
func (r Record) HasPrice() bool {
	return r.Price != nil
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
