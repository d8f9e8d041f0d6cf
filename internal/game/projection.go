package game

// Projection folds an action log into State and remembers which action ids it
// has applied, so duplicate deliveries are no-ops.
type Projection struct {
	state   State
	applied map[string]struct{}
	log     []Action
}

func NewProjection() *Projection {
	return &Projection{
		state:   NewState(),
		applied: make(map[string]struct{}),
	}
}

// Replay builds a projection from an ordered log.
func Replay(actions []Action) *Projection {
	p := NewProjection()
	for _, a := range actions {
		p.Apply(a)
	}
	return p
}

// Apply folds a into the projection. It returns false when the action was
// already applied or has no id.
func (p *Projection) Apply(a Action) bool {
	if a.ID == "" {
		skip(p.state, a, "missing id")
		return false
	}
	if _, seen := p.applied[a.ID]; seen {
		return false
	}
	p.applied[a.ID] = struct{}{}
	p.log = append(p.log, a)
	p.state = Reduce(p.state, a)
	return true
}

// Has reports whether an action id was already applied.
func (p *Projection) Has(id string) bool {
	_, ok := p.applied[id]
	return ok
}

// SetEphemeral applies a host-pushed patch.
func (p *Projection) SetEphemeral(e Ephemeral) {
	p.state = p.state.WithEphemeral(e)
}

func (p *Projection) State() State {
	return p.state.Clone()
}

func (p *Projection) Status() Status {
	return p.state.Status
}

func (p *Projection) Log() []Action {
	return append([]Action(nil), p.log...)
}

func (p *Projection) Len() int {
	return len(p.log)
}
