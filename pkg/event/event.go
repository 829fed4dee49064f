package event

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/vjranagit/tickstats/pkg/game"
)

// Type represents the kind of host event
type Type int

const (
	StatChanged Type = iota
	ItemContainerChanged
	GameTick
	GameStateChanged
)

// String returns the string representation of the Type
func (t Type) String() string {
	switch t {
	case StatChanged:
		return "StatChanged"
	case ItemContainerChanged:
		return "ItemContainerChanged"
	case GameTick:
		return "GameTick"
	case GameStateChanged:
		return "GameStateChanged"
	default:
		return "Unknown"
	}
}

type Event interface{ EventType() Type }

// StatChangedEvent fires when a skill's experience or level changes
type StatChangedEvent struct {
	Skill game.Skill
}

func (StatChangedEvent) EventType() Type { return StatChanged }

// ItemContainerChangedEvent fires when a container's slots change.
// Container is nil when the host could not resolve the container.
type ItemContainerChangedEvent struct {
	ContainerID int
	Container   *game.ItemContainer
}

func (ItemContainerChangedEvent) EventType() Type { return ItemContainerChanged }

// GameTickEvent fires once per server tick
type GameTickEvent struct{}

func (GameTickEvent) EventType() Type { return GameTick }

// GameStateChangedEvent fires on connection state transitions
type GameStateChangedEvent struct {
	State game.GameState
}

func (GameStateChangedEvent) EventType() Type { return GameStateChanged }

type Handler func(Event)

// Dispatcher delivers events synchronously, in registration order, to the
// handlers registered for their type. It holds no global state; every
// handler is registered explicitly by its owner.
type Dispatcher struct {
	subs   map[Type][]Handler
	logger logr.Logger
}

func NewDispatcher(logger logr.Logger) *Dispatcher {
	return &Dispatcher{
		subs:   map[Type][]Handler{},
		logger: logger.WithName("dispatcher"),
	}
}

// Subscribe registers h for events of type t
func (d *Dispatcher) Subscribe(t Type, h Handler) {
	d.subs[t] = append(d.subs[t], h)
}

// Dispatch runs every handler for e. A panicking handler is logged and does
// not stop the remaining handlers.
func (d *Dispatcher) Dispatch(e Event) {
	for _, h := range d.subs[e.EventType()] {
		d.call(h, e)
	}
}

func (d *Dispatcher) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Errorf("%v", r), "event handler panicked", "event", e.EventType().String())
		}
	}()
	h(e)
}

// On registers a handler typed to a concrete event struct
func On[E Event](d *Dispatcher, fn func(E)) {
	var zero E
	d.Subscribe(zero.EventType(), func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}
