// Package attrs reads values back out of slog-style key/value lists.
package attrs

// Lookup returns the value following key in a [key1, value1, key2, value2, ...]
// list when it has type T. Non-string keys and a trailing key without a value
// are skipped.
func Lookup[T any](kv []any, key string) (T, bool) {
	var zero T
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		v, ok := kv[i+1].(T)
		return v, ok
	}
	return zero, false
}

// ExtractString is Lookup for string values, returning "" when absent.
func ExtractString(kv []any, key string) string {
	v, _ := Lookup[string](kv, key)
	return v
}
