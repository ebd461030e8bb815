package utils

func FindIndex[T comparable](slice []T, item T) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}

// Without returns a copy of slice without the first occurrence of item.
func Without[T comparable](slice []T, item T) []T {
	out := make([]T, 0, len(slice))
	i := FindIndex(slice, item)
	for j, v := range slice {
		if j != i {
			out = append(out, v)
		}
	}
	return out
}

// CloneAll deep copies a slice of slices.
func CloneAll[T any](slices [][]T) [][]T {
	if slices == nil {
		return nil
	}
	out := make([][]T, len(slices))
	for i, s := range slices {
		out[i] = append([]T{}, s...)
	}
	return out
}
