package resource

// highlightColor replaces the RGB channels of a selected or hovered region. Alpha is kept.
var highlightColor = [3]byte{255, 255, 255}

// Highlight is the selection and hover state of the map.
// It never mutates the color buffers it is applied to.
type Highlight struct {
	selected *int
	hovered  *int
}

// Select marks a region index as selected.
func (h *Highlight) Select(index int) {
	h.selected = &index
}

// Hover marks a region index as hovered.
func (h *Highlight) Hover(index int) {
	h.hovered = &index
}

// ClearSelection removes the selection.
func (h *Highlight) ClearSelection() {
	h.selected = nil
}

// ClearHover removes the hover.
func (h *Highlight) ClearHover() {
	h.hovered = nil
}

// Selected returns the selected index and whether there is one.
func (h *Highlight) Selected() (int, bool) {
	if h.selected == nil {
		return 0, false
	}
	return *h.selected, true
}

// Hovered returns the hovered index and whether there is one.
func (h *Highlight) Hovered() (int, bool) {
	if h.hovered == nil {
		return 0, false
	}
	return *h.hovered, true
}

// Empty reports whether nothing is selected or hovered.
func (h *Highlight) Empty() bool {
	return h.selected == nil && h.hovered == nil
}

// Apply returns copies of the primary and secondary color buffers with the selected and hovered regions
// forced to white. The secondary buffer is left alone for striped regions, whose secondary color differs from
// their primary one, so the stripes stay visible.
//
// Parameters:
//   - primary: RGBA per region
//   - secondary: RGBA per region, same length as primary
//
// Returns:
//   - p, s: the highlighted copies, or the inputs themselves when nothing is highlighted
func (h *Highlight) Apply(primary, secondary []byte) (p, s []byte) {
	if h.Empty() {
		return primary, secondary
	}
	p = append([]byte(nil), primary...)
	s = append([]byte(nil), secondary...)
	for _, index := range []*int{h.selected, h.hovered} {
		if index == nil {
			continue
		}
		k := *index * 4
		if k < 0 || k+4 > len(primary) {
			continue
		}
		striped := k+4 <= len(secondary) &&
			(primary[k] != secondary[k] || primary[k+1] != secondary[k+1] || primary[k+2] != secondary[k+2])
		copy(p[k:k+3], highlightColor[:])
		if !striped && k+4 <= len(s) {
			copy(s[k:k+3], highlightColor[:])
		}
	}
	return p, s
}
