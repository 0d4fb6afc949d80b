package session

import "sort"

// DeletionSet is the set of logical pages removed from a document. It is
// owned by a Session and not safe for concurrent use on its own.
type DeletionSet struct {
	pages map[int]struct{}
}

// NewDeletionSet creates an empty set
func NewDeletionSet() *DeletionSet {
	return &DeletionSet{pages: make(map[int]struct{})}
}

// Add marks page as deleted and reports whether it was newly added
func (d *DeletionSet) Add(page int) bool {
	if _, ok := d.pages[page]; ok {
		return false
	}
	d.pages[page] = struct{}{}
	return true
}

// Contains reports whether page is deleted
func (d *DeletionSet) Contains(page int) bool {
	if d == nil {
		return false
	}
	_, ok := d.pages[page]
	return ok
}

// Len returns the number of deleted pages
func (d *DeletionSet) Len() int {
	if d == nil {
		return 0
	}
	return len(d.pages)
}

// Pages returns the deleted pages in ascending order
func (d *DeletionSet) Pages() []int {
	if d == nil {
		return nil
	}
	pages := make([]int, 0, len(d.pages))
	for p := range d.pages {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// CountBefore returns how many deleted pages precede page
func (d *DeletionSet) CountBefore(page int) int {
	if d == nil {
		return 0
	}
	n := 0
	for p := range d.pages {
		if p < page {
			n++
		}
	}
	return n
}
