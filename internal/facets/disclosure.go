package facets

import "fmt"

const (
	// DefaultCollapsedBase is how many values a collapsed facet shows.
	DefaultCollapsedBase = 5
	// DefaultStep is how many extra values each "show more" reveals.
	DefaultStep = 50
)

// DisclosureConfig sets the collapsed size and reveal step.
type DisclosureConfig struct {
	CollapsedBase int
	Step          int
}

func (c DisclosureConfig) withDefaults() DisclosureConfig {
	if c.CollapsedBase <= 0 {
		c.CollapsedBase = DefaultCollapsedBase
	}
	if c.Step <= 0 {
		c.Step = DefaultStep
	}
	return c
}

// DisclosureState is the show-more state of one facet kind.
type DisclosureState struct {
	Expanded bool
	// Reveals counts "show more" activations since the last collapse.
	Reveals int
}

// Disclosure tracks, per facet kind, how much of the value list is revealed
// and whether the kind's outer panel is open.
//
// Each kind moves Collapsed(0) -> Expanded(1) -> ... -> Expanded(n) ->
// Collapsed(0); kinds are independent of each other.
type Disclosure struct {
	cfg    DisclosureConfig
	states map[Kind]DisclosureState
	panels map[Kind]bool
}

// NewDisclosure returns a disclosure machine with every kind collapsed and
// every panel closed.
func NewDisclosure(cfg DisclosureConfig) *Disclosure {
	return &Disclosure{
		cfg:    cfg.withDefaults(),
		states: make(map[Kind]DisclosureState),
		panels: make(map[Kind]bool),
	}
}

// Config returns the effective configuration.
func (d *Disclosure) Config() DisclosureConfig { return d.cfg }

// State returns the show-more state of kind.
func (d *Disclosure) State(kind Kind) DisclosureState { return d.states[kind] }

// PanelOpen reports whether the outer panel of kind is open.
func (d *Disclosure) PanelOpen(kind Kind) bool { return d.panels[kind] }

// ToggleShowMore advances the show-more state of kind for a list of total
// values: collapsed expands to one reveal, expanded reveals another step while
// values remain hidden, and a fully revealed list collapses again. It is a
// no-op when the collapsed view already shows everything.
func (d *Disclosure) ToggleShowMore(kind Kind, total int) DisclosureState {
	if total <= d.cfg.CollapsedBase {
		return d.states[kind]
	}

	st := d.states[kind]
	switch {
	case !st.Expanded:
		st = DisclosureState{Expanded: true, Reveals: 1}
	case d.cfg.CollapsedBase+st.Reveals*d.cfg.Step < total:
		st.Reveals++
	default:
		st = DisclosureState{}
	}
	d.states[kind] = st
	return st
}

// TogglePanel opens or closes the outer panel of kind. Closing the panel
// collapses its show-more state. It reports whether the panel is now open.
func (d *Disclosure) TogglePanel(kind Kind) bool {
	open := !d.panels[kind]
	d.panels[kind] = open
	if !open {
		delete(d.states, kind)
	}
	return open
}

// Reset collapses every kind and closes every panel.
func (d *Disclosure) Reset() {
	d.states = make(map[Kind]DisclosureState)
	d.panels = make(map[Kind]bool)
}

// Visible returns how many of total values are shown for kind.
func (d *Disclosure) Visible(kind Kind, total int) int {
	if total < 0 {
		total = 0
	}
	st := d.states[kind]
	n := d.cfg.CollapsedBase
	if st.Expanded {
		n = d.cfg.CollapsedBase + st.Reveals*d.cfg.Step
	}
	return min(n, total)
}

// MoreLabel returns the text of the show-more control for kind: "Show N more"
// while values remain hidden, "Show less" once everything is revealed, and ""
// when there is nothing to reveal.
func (d *Disclosure) MoreLabel(kind Kind, total int) string {
	if total <= d.cfg.CollapsedBase {
		return ""
	}
	visible := d.Visible(kind, total)
	if visible >= total {
		return "Show less"
	}
	return fmt.Sprintf("Show %d more", min(d.cfg.Step, total-visible))
}
