package game

// Overlay holds local speculative actions on top of the last authoritative
// state. The authoritative state is never mutated by speculation; Reset drops
// every pending action.
type Overlay struct {
	base    State
	pending []Action
}

func NewOverlay(base State) *Overlay {
	return &Overlay{base: base.Clone()}
}

// Reset installs a new authoritative state and discards speculation.
func (o *Overlay) Reset(base State) {
	o.base = base.Clone()
	o.pending = nil
}

// Push records a speculative action.
func (o *Overlay) Push(a Action) {
	o.pending = append(o.pending, a)
}

// View is the authoritative state with pending actions folded on top.
func (o *Overlay) View() State {
	view := o.base.Clone()
	for _, a := range o.pending {
		view = Reduce(view, a)
	}
	return view
}

// Base is the last authoritative state.
func (o *Overlay) Base() State {
	return o.base.Clone()
}

func (o *Overlay) Pending() int {
	return len(o.pending)
}
