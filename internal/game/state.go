package game

import "sort"

// Status is the lifecycle of a single game inside a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// State is the projection every participant derives from the action log.
// CurrentRound, CurrentWord and TimeLeft are owned by the host and only ever
// change through Ephemeral patches.
type State struct {
	Status       Status          `json:"status"`
	Scores       map[string]int  `json:"scores"`
	Ready        map[string]bool `json:"ready,omitempty"`
	CurrentRound int             `json:"currentRound"`
	CurrentWord  string          `json:"currentWord,omitempty"`
	TimeLeft     int             `json:"timeLeft"`
	WordsGuessed []string        `json:"wordsGuessed"`
	WordsSkipped []string        `json:"wordsSkipped"`
	StartedAt    int64           `json:"startedAt,omitempty"`
	EndedAt      int64           `json:"endedAt,omitempty"`
}

// Ephemeral is a host-pushed patch of the fields peers cannot recompute.
type Ephemeral struct {
	CurrentRound *int    `json:"currentRound,omitempty"`
	CurrentWord  *string `json:"currentWord,omitempty"`
	TimeLeft     *int    `json:"timeLeft,omitempty"`
}

func NewState() State {
	return State{
		Status:       StatusWaiting,
		Scores:       make(map[string]int),
		WordsGuessed: []string{},
		WordsSkipped: []string{},
	}
}

// Clone returns a deep copy so callers never share maps with a projection.
func (s State) Clone() State {
	out := s
	out.Scores = make(map[string]int, len(s.Scores))
	for id, score := range s.Scores {
		out.Scores[id] = score
	}
	if s.Ready != nil {
		out.Ready = make(map[string]bool, len(s.Ready))
		for id, ready := range s.Ready {
			out.Ready[id] = ready
		}
	}
	out.WordsGuessed = append([]string{}, s.WordsGuessed...)
	out.WordsSkipped = append([]string{}, s.WordsSkipped...)
	return out
}

// WithEphemeral returns a copy of s with the patch applied.
func (s State) WithEphemeral(e Ephemeral) State {
	out := s.Clone()
	if e.CurrentRound != nil {
		out.CurrentRound = *e.CurrentRound
	}
	if e.CurrentWord != nil {
		out.CurrentWord = *e.CurrentWord
	}
	if e.TimeLeft != nil {
		out.TimeLeft = *e.TimeLeft
	}
	return out
}

// Empty reports whether the patch carries no field.
func (e Ephemeral) Empty() bool {
	return e.CurrentRound == nil && e.CurrentWord == nil && e.TimeLeft == nil
}

// Active reports whether a game is underway (playing or paused).
func (s State) Active() bool {
	return s.Status == StatusPlaying || s.Status == StatusPaused
}

// Leaders returns the ids holding the top score, sorted for stable output.
func (s State) Leaders() []string {
	best := 0
	first := true
	leaders := []string{}
	for id, score := range s.Scores {
		switch {
		case first || score > best:
			best = score
			leaders = []string{id}
			first = false
		case score == best:
			leaders = append(leaders, id)
		}
	}
	sort.Strings(leaders)
	return leaders
}
