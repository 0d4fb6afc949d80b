package session

// PageSet answers membership queries for logical page numbers
type PageSet interface {
	Contains(page int) bool
}

// NextVisible returns the first page after current that is not deleted
func NextVisible(current, pageCount int, deleted PageSet) (int, bool) {
	for p := current + 1; p <= pageCount; p++ {
		if !deleted.Contains(p) {
			return p, true
		}
	}
	return 0, false
}

// PreviousVisible returns the first page before current that is not deleted
func PreviousVisible(current, pageCount int, deleted PageSet) (int, bool) {
	if current > pageCount+1 {
		current = pageCount + 1
	}
	for p := current - 1; p >= 1; p-- {
		if !deleted.Contains(p) {
			return p, true
		}
	}
	return 0, false
}

// DisplayPageNumber returns the 1-based position of current among the
// pages that are not deleted.
func DisplayPageNumber(current int, deleted *DeletionSet) int {
	return current - deleted.CountBefore(current)
}

// VisibleCount returns the number of pages that are not deleted
func VisibleCount(pageCount int, deleted *DeletionSet) int {
	n := pageCount
	for _, p := range deleted.Pages() {
		if p >= 1 && p <= pageCount {
			n--
		}
	}
	return n
}
