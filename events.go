package impulse

import (
	"cmp"
	"slices"

	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	TRIGGER_ENTER EventType = iota
	COLLISION_ENTER
	TRIGGER_EXIT
	COLLISION_EXIT
)

type EventType uint8

func (t EventType) String() string {
	switch t {
	case TRIGGER_ENTER:
		return "TriggerEnter"
	case COLLISION_ENTER:
		return "CollisionEnter"
	case TRIGGER_EXIT:
		return "TriggerExit"
	case COLLISION_EXIT:
		return "CollisionExit"
	default:
		return "Unknown"
	}
}

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// TriggerEnterEvent is sent when a rigid body starts overlapping a trigger.
type TriggerEnterEvent struct {
	Trigger *actor.Body
	Other   *actor.Body
}

func (e TriggerEnterEvent) Type() EventType { return TRIGGER_ENTER }

type TriggerExitEvent struct {
	Trigger *actor.Body
	Other   *actor.Body
}

func (e TriggerExitEvent) Type() EventType { return TRIGGER_EXIT }

// CollisionEnterEvent is sent on the first step two bodies touch. Point and
// Normal are averaged over the contacts, the normal pointing from A to B.
// RelativeVelocity is the velocity of B minus the velocity of A at Point,
// before the solver runs, and RelativeSpeed its component along Normal.
type CollisionEnterEvent struct {
	BodyA *actor.Body
	BodyB *actor.Body

	Point            mgl64.Vec3
	Normal           mgl64.Vec3
	RelativeVelocity mgl64.Vec3
	RelativeSpeed    float64
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionExitEvent struct {
	BodyA *actor.Body
	BodyB *actor.Body
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// EventListener - callback for events
type EventListener func(event Event)

// pairKey identifies two bodies by ID, in the order of the event.
type pairKey struct {
	a, b uint64
}

func comparePairKeys(x, y pairKey) int {
	if c := cmp.Compare(x.a, y.a); c != 0 {
		return c
	}
	return cmp.Compare(x.b, y.b)
}

// overlap is a rigid body inside a trigger during one step.
type overlap struct {
	key     pairKey
	trigger *actor.Body
	other   *actor.Body
}

// touch is two bodies in contact during one step. Bodies are ordered by ID.
type touch struct {
	key   pairKey
	event CollisionEnterEvent
}

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Sorted overlaps and contacts of the previous step
	previousOverlaps []overlap
	previousTouches  []touch
}

func NewEvents() Events {
	return Events{
		listeners: make(map[EventType][]EventListener),
		buffer:    make([]Event, 0, 256),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	if e.listeners == nil {
		e.listeners = make(map[EventType][]EventListener)
	}
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// merge walks two sorted lists at once and reports the keys found only in
// previous as exits and only in current as enters.
func merge[T any](previous, current []T, key func(T) pairKey, enter, exit func(T)) {
	i, j := 0, 0
	for i < len(previous) && j < len(current) {
		switch c := comparePairKeys(key(previous[i]), key(current[j])); {
		case c == 0:
			i++
			j++
		case c < 0:
			exit(previous[i])
			i++
		default:
			enter(current[j])
			j++
		}
	}
	for ; i < len(previous); i++ {
		exit(previous[i])
	}
	for ; j < len(current); j++ {
		enter(current[j])
	}
}

// sortUnique sorts items by key and drops the duplicates, keeping the first
// occurrence of each key. Multiple colliders may report the same pair of bodies.
func sortUnique[T any](items []T, key func(T) pairKey) []T {
	slices.SortStableFunc(items, func(x, y T) int {
		return comparePairKeys(key(x), key(y))
	})
	return slices.CompactFunc(items, func(x, y T) bool {
		return key(x) == key(y)
	})
}

func overlapKey(o overlap) pairKey { return o.key }
func touchKey(t touch) pairKey     { return t.key }

// recordOverlaps compares this step's trigger overlaps with the previous step's.
// current may live in the step arena: it is copied.
func (e *Events) recordOverlaps(current []overlap) {
	current = sortUnique(current, overlapKey)

	merge(e.previousOverlaps, current, overlapKey,
		func(o overlap) {
			e.buffer = append(e.buffer, TriggerEnterEvent{Trigger: o.trigger, Other: o.other})
		},
		func(o overlap) {
			e.buffer = append(e.buffer, TriggerExitEvent{Trigger: o.trigger, Other: o.other})
		},
	)

	e.previousOverlaps = append(e.previousOverlaps[:0], current...)
}

// recordTouches compares this step's collisions with the previous step's.
func (e *Events) recordTouches(current []touch) {
	current = sortUnique(current, touchKey)

	merge(e.previousTouches, current, touchKey,
		func(t touch) {
			e.buffer = append(e.buffer, t.event)
		},
		func(t touch) {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: t.event.BodyA, BodyB: t.event.BodyB})
		},
	)

	e.previousTouches = append(e.previousTouches[:0], current...)
}

// forget drops the history of a removed body, so that it never gets an exit event.
func (e *Events) forget(id uint64) {
	e.previousOverlaps = slices.DeleteFunc(e.previousOverlaps, func(o overlap) bool {
		return o.key.a == id || o.key.b == id
	})
	e.previousTouches = slices.DeleteFunc(e.previousTouches, func(t touch) bool {
		return t.key.a == id || t.key.b == id
	})
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	clear(e.buffer)
	e.buffer = e.buffer[:0]
}
