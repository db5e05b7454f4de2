package impulse

import (
	"testing"

	"github.com/akmonengine/impulse/actor"
)

type eventCapture struct {
	events []Event
}

func (ec *eventCapture) capture(event Event) {
	ec.events = append(ec.events, event)
}

func (ec *eventCapture) reset() {
	ec.events = ec.events[:0]
}

func (ec *eventCapture) count() int {
	return len(ec.events)
}

func (ec *eventCapture) ofType(eventType EventType) []Event {
	var events []Event
	for _, e := range ec.events {
		if e.Type() == eventType {
			events = append(events, e)
		}
	}
	return events
}

func createEventBody(id uint64) *actor.Body {
	return &actor.Body{ID: id, Transform: actor.NewTransform(), Kind: actor.ObjectTypeRigidBody}
}

func subscribeAll(events *Events, capture *eventCapture) {
	for _, eventType := range []EventType{TRIGGER_ENTER, COLLISION_ENTER, TRIGGER_EXIT, COLLISION_EXIT} {
		events.Subscribe(eventType, capture.capture)
	}
}

func createTouch(a, b *actor.Body) touch {
	return touch{key: pairKey{a: a.ID, b: b.ID}, event: CollisionEnterEvent{BodyA: a, BodyB: b}}
}

func createOverlap(trigger, other *actor.Body) overlap {
	return overlap{key: pairKey{a: trigger.ID, b: other.ID}, trigger: trigger, other: other}
}

func TestEvents_Subscribe(t *testing.T) {
	t.Run("registers listeners", func(t *testing.T) {
		events := NewEvents()
		capture := &eventCapture{}

		events.Subscribe(COLLISION_ENTER, capture.capture)
		events.Subscribe(COLLISION_ENTER, capture.capture)

		if len(events.listeners[COLLISION_ENTER]) != 2 {
			t.Errorf("Expected 2 listeners for COLLISION_ENTER, got %d", len(events.listeners[COLLISION_ENTER]))
		}
	})

	t.Run("zero value", func(t *testing.T) {
		var events Events
		capture := &eventCapture{}

		events.Subscribe(TRIGGER_ENTER, capture.capture)
		events.buffer = append(events.buffer, TriggerEnterEvent{})
		events.flush()

		if capture.count() != 1 {
			t.Errorf("Expected 1 event, got %d", capture.count())
		}
	})
}

func TestEvents_Flush(t *testing.T) {
	events := NewEvents()
	enter := &eventCapture{}
	exit := &eventCapture{}
	events.Subscribe(COLLISION_ENTER, enter.capture)
	events.Subscribe(COLLISION_EXIT, exit.capture)

	events.buffer = append(events.buffer, CollisionEnterEvent{}, CollisionExitEvent{}, TriggerEnterEvent{})
	events.flush()

	if enter.count() != 1 || exit.count() != 1 {
		t.Errorf("Expected 1 enter and 1 exit event, got %d and %d", enter.count(), exit.count())
	}
	if len(events.buffer) != 0 {
		t.Errorf("Expected an empty buffer after flush, got %d events", len(events.buffer))
	}

	events.flush()
	if enter.count() != 1 {
		t.Errorf("Expected no event on a second flush, got %d", enter.count())
	}
}

func TestEvents_Touches(t *testing.T) {
	a, b, c := createEventBody(1), createEventBody(2), createEventBody(3)

	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	t.Run("first contact", func(t *testing.T) {
		events.recordTouches([]touch{createTouch(b, c), createTouch(a, b)})
		events.flush()

		enters := capture.ofType(COLLISION_ENTER)
		if len(enters) != 2 {
			t.Fatalf("Expected 2 COLLISION_ENTER events, got %d", len(enters))
		}
		first := enters[0].(CollisionEnterEvent)
		if first.BodyA != a || first.BodyB != b {
			t.Errorf("Expected events sorted by pair, got %d-%d first", first.BodyA.ID, first.BodyB.ID)
		}
		capture.reset()
	})

	t.Run("persistent contact", func(t *testing.T) {
		events.recordTouches([]touch{createTouch(a, b), createTouch(b, c)})
		events.flush()

		if capture.count() != 0 {
			t.Errorf("Expected no event for persistent contacts, got %d", capture.count())
		}
	})

	t.Run("duplicate pairs", func(t *testing.T) {
		events.recordTouches([]touch{createTouch(a, b), createTouch(a, b), createTouch(b, c), createTouch(a, c)})
		events.flush()

		if capture.count() != 1 {
			t.Fatalf("Expected 1 event, got %d", capture.count())
		}
		if len(events.previousTouches) != 3 {
			t.Errorf("Expected 3 remembered touches, got %d", len(events.previousTouches))
		}
		capture.reset()
	})

	t.Run("separation", func(t *testing.T) {
		events.recordTouches([]touch{createTouch(b, c)})
		events.flush()

		exits := capture.ofType(COLLISION_EXIT)
		if len(exits) != 2 {
			t.Fatalf("Expected 2 COLLISION_EXIT events, got %d", len(exits))
		}
		for _, e := range exits {
			exit := e.(CollisionExitEvent)
			if exit.BodyA != a {
				t.Errorf("Expected body 1 to leave its contacts, got %d-%d", exit.BodyA.ID, exit.BodyB.ID)
			}
		}
		capture.reset()
	})
}

func TestEvents_Overlaps(t *testing.T) {
	trigger, a, b := createEventBody(1), createEventBody(2), createEventBody(3)
	trigger.Kind = actor.ObjectTypeTrigger

	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	events.recordOverlaps([]overlap{createOverlap(trigger, a)})
	events.flush()
	enters := capture.ofType(TRIGGER_ENTER)
	if len(enters) != 1 {
		t.Fatalf("Expected 1 TRIGGER_ENTER event, got %d", len(enters))
	}
	if e := enters[0].(TriggerEnterEvent); e.Trigger != trigger || e.Other != a {
		t.Errorf("Expected trigger 1 entered by body 2, got %d entered by %d", e.Trigger.ID, e.Other.ID)
	}
	capture.reset()

	events.recordOverlaps([]overlap{createOverlap(trigger, b), createOverlap(trigger, a)})
	events.flush()
	if capture.count() != 1 || len(capture.ofType(TRIGGER_ENTER)) != 1 {
		t.Errorf("Expected only body 3 to enter, got %d events", capture.count())
	}
	capture.reset()

	events.recordOverlaps(nil)
	events.flush()
	if len(capture.ofType(TRIGGER_EXIT)) != 2 {
		t.Errorf("Expected 2 TRIGGER_EXIT events, got %d", len(capture.ofType(TRIGGER_EXIT)))
	}
}

func TestEvents_Forget(t *testing.T) {
	trigger, a, b := createEventBody(1), createEventBody(2), createEventBody(3)

	events := NewEvents()
	capture := &eventCapture{}
	subscribeAll(&events, capture)

	events.recordOverlaps([]overlap{createOverlap(trigger, a), createOverlap(trigger, b)})
	events.recordTouches([]touch{createTouch(a, b)})
	events.flush()
	capture.reset()

	events.forget(a.ID)
	events.recordOverlaps([]overlap{createOverlap(trigger, b)})
	events.recordTouches(nil)
	events.flush()

	if capture.count() != 0 {
		t.Errorf("Expected a forgotten body to produce no exit event, got %d events", capture.count())
	}
}

func TestEventType_String(t *testing.T) {
	tests := map[EventType]string{
		TRIGGER_ENTER:   "TriggerEnter",
		COLLISION_ENTER: "CollisionEnter",
		TRIGGER_EXIT:    "TriggerExit",
		COLLISION_EXIT:  "CollisionExit",
		EventType(42):   "Unknown",
	}
	for eventType, expected := range tests {
		if got := eventType.String(); got != expected {
			t.Errorf("Expected %s, got %s", expected, got)
		}
	}
}
