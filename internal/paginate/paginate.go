// Package paginate slices ordered listings into fixed-size pages.
package paginate

// Paginate returns the page at index page and the total number of pages.
//
// There is always at least one page. An out-of-range index is clamped to the
// first or last page. A non-positive size puts every item on a single page.
func Paginate[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = max(len(items), 1)
	}

	total := max(1, (len(items)+size-1)/size)
	page = min(max(page, 0), total-1)

	start := page * size
	end := min(len(items), start+size)

	return items[start:end:end], total
}
