package pointers

// NonZero returns a pointer to v, or nil when v is the zero value.
// It maps optional wire fields to JSON null.
func NonZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
