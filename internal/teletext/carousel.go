package teletext

import "sort"

// AddPage inserts a committed page into the carousel, merging into an
// existing subpage sharing the same subcode rather than duplicating it
// (spec.md §4.7). An incoming page with the erase flag set and at least one
// row replaces the existing subpage outright instead of merging into it.
func (c *Carousel) AddPage(p *Page) {
	for i, existing := range c.Pages {
		if existing.Subcode == p.Subcode {
			if p.Erase && p.UsedRows() > 0 {
				c.Pages[i] = p
			} else {
				existing.Merge(p)
			}
			return
		}
	}
	c.Pages = append(c.Pages, p)
}

// Sort orders Pages by ascending subcode, the ordering sinks are expected
// to walk a carousel in (spec.md §5's subpage ordering invariant).
func (c *Carousel) Sort() {
	sort.Slice(c.Pages, func(i, j int) bool { return c.Pages[i].Subcode < c.Pages[j].Subcode })
}
