package postgres

import "fmt"

// placeholder renders the n-th positional query placeholder.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
