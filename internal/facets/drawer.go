package facets

// Drawer is the facet panel of a browsing page: the cleaned values per kind,
// the selection, and the disclosure state. It is not safe for concurrent use;
// it belongs to the UI loop that owns it.
type Drawer struct {
	open       bool
	values     map[Kind][]string
	Selection  Selection
	Disclosure *Disclosure
}

// NewDrawer returns a closed drawer with no values.
func NewDrawer(cfg DisclosureConfig) *Drawer {
	return &Drawer{
		values:     make(map[Kind][]string),
		Disclosure: NewDisclosure(cfg),
	}
}

// IsOpen reports whether the drawer is shown.
func (d *Drawer) IsOpen() bool { return d.open }

// Open shows the drawer. Reopening starts from a clean state.
func (d *Drawer) Open() {
	d.Reset()
	d.open = true
}

// Close hides the drawer and keeps its state.
func (d *Drawer) Close() { d.open = false }

// Reset clears the selection, collapses every kind and closes every panel.
func (d *Drawer) Reset() {
	d.Selection.Clear()
	d.Disclosure.Reset()
}

// SetValues replaces the values of every kind with a fresh listing.
func (d *Drawer) SetValues(values map[Kind][]string) {
	d.values = make(map[Kind][]string, len(values))
	for kind, list := range values {
		d.values[kind] = list
	}
}

// Values returns every value of kind.
func (d *Drawer) Values(kind Kind) []string { return d.values[kind] }

// VisibleValues returns the values of kind the disclosure state reveals.
func (d *Drawer) VisibleValues(kind Kind) []string {
	all := d.values[kind]
	return all[:d.Disclosure.Visible(kind, len(all))]
}

// ToggleShowMore advances the show-more state of kind.
func (d *Drawer) ToggleShowMore(kind Kind) DisclosureState {
	return d.Disclosure.ToggleShowMore(kind, len(d.values[kind]))
}

// TogglePanel opens or closes the panel of kind.
func (d *Drawer) TogglePanel(kind Kind) bool {
	return d.Disclosure.TogglePanel(kind)
}

// MoreLabel returns the show-more control text for kind.
func (d *Drawer) MoreLabel(kind Kind) string {
	return d.Disclosure.MoreLabel(kind, len(d.values[kind]))
}

// Toggle flips the selection of value.
func (d *Drawer) Toggle(kind Kind, value string) bool {
	return d.Selection.Toggle(kind, value)
}
