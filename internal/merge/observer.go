package merge

// EventKind identifies a progress event.
type EventKind string

const (
	EventClipNormalized EventKind = "clip_normalized"
	EventClipFailed     EventKind = "clip_failed"
	EventClipSkipped    EventKind = "clip_skipped"
	EventGroupAssembled EventKind = "group_assembled"
	EventGroupFailed    EventKind = "group_failed"
)

// Event reports progress of a run. Step counts completed units of work out
// of Steps; a unit is one clip normalization or one group assembly.
type Event struct {
	Kind     EventKind
	Group    int
	Clip     string
	Strategy Strategy
	Output   string
	Err      error
	Step     int
	Steps    int
}

// Observer receives progress events. Observe is called synchronously from
// the run and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
