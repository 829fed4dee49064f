package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/vjranagit/tickstats/pkg/event"
	"github.com/vjranagit/tickstats/pkg/game"
)

// Envelope kinds
const (
	KindStat      = "stat"
	KindContainer = "container"
	KindTick      = "tick"
	KindGameState = "game_state"
)

// ErrUnknownKind is returned for envelopes of an unsupported kind
var ErrUnknownKind = errors.New("unknown event kind")

// StatUpdate carries one skill's experience and unboosted level
type StatUpdate struct {
	Skill string `json:"skill"`
	XP    int    `json:"xp"`
	Level int    `json:"level"`
}

// Envelope is a host event as received over the wire. Optional fields
// update the snapshot before the typed event is dispatched.
type Envelope struct {
	Kind string `json:"kind"`

	Stat *StatUpdate `json:"stat,omitempty"`
	// Stats seeds several skills at once, typically just before login
	Stats     []StatUpdate        `json:"stats,omitempty"`
	Container *game.ItemContainer `json:"container,omitempty"`
	// ContainerID identifies the container when Container is absent
	ContainerID *int `json:"container_id,omitempty"`

	Player      *game.Player `json:"player,omitempty"`
	ClearPlayer bool         `json:"clear_player,omitempty"`
	Instanced   *bool        `json:"instanced,omitempty"`
	QuestPoints *int         `json:"quest_points,omitempty"`

	State    string  `json:"state,omitempty"`
	Username *string `json:"username,omitempty"`
}

// Bridge applies envelopes to the snapshot and dispatches the matching
// event. Calls are serialised so dispatch stays single-sequence.
type Bridge struct {
	mu         sync.Mutex
	state      *State
	dispatcher *event.Dispatcher
	logger     logr.Logger
}

// NewBridge creates a bridge
func NewBridge(state *State, dispatcher *event.Dispatcher, logger logr.Logger) *Bridge {
	return &Bridge{
		state:      state,
		dispatcher: dispatcher,
		logger:     logger.WithName("bridge"),
	}
}

// Apply validates env, updates the snapshot and dispatches one event. A
// rejected envelope leaves the snapshot untouched.
func (b *Bridge) Apply(env Envelope) error {
	ev, err := b.decode(env)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.update(env)
	b.dispatcher.Dispatch(ev)
	return nil
}

// decode builds the typed event and checks every field before any state is
// touched
func (b *Bridge) decode(env Envelope) (event.Event, error) {
	if env.Stat != nil {
		if _, err := parseStat(*env.Stat); err != nil {
			return nil, err
		}
	}
	for _, st := range env.Stats {
		if _, err := parseStat(st); err != nil {
			return nil, err
		}
	}

	switch env.Kind {
	case KindStat:
		if env.Stat == nil {
			return nil, fmt.Errorf("stat event without stat")
		}
		skill, _ := game.ParseSkill(env.Stat.Skill)
		return event.StatChangedEvent{Skill: skill}, nil

	case KindContainer:
		switch {
		case env.ContainerID != nil:
			return event.ItemContainerChangedEvent{ContainerID: *env.ContainerID, Container: env.Container}, nil
		case env.Container != nil:
			return event.ItemContainerChangedEvent{ContainerID: env.Container.ID, Container: env.Container}, nil
		default:
			return nil, fmt.Errorf("container event without container id")
		}

	case KindTick:
		return event.GameTickEvent{}, nil

	case KindGameState:
		gs, ok := game.ParseGameState(env.State)
		if !ok {
			return nil, fmt.Errorf("unknown game state %q", env.State)
		}
		return event.GameStateChangedEvent{State: gs}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}

func parseStat(st StatUpdate) (game.Skill, error) {
	skill, ok := game.ParseSkill(st.Skill)
	if !ok || skill == game.Overall {
		return 0, fmt.Errorf("unknown skill %q", st.Skill)
	}
	if st.XP < 0 || st.Level < 0 {
		return 0, fmt.Errorf("negative experience or level for %s", st.Skill)
	}
	return skill, nil
}

func (b *Bridge) update(env Envelope) {
	if env.Username != nil {
		b.state.SetUsername(*env.Username)
	}
	for _, st := range env.Stats {
		skill, _ := parseStat(st)
		b.state.SetSkill(skill, st.XP, st.Level)
	}
	if env.Stat != nil {
		skill, _ := parseStat(*env.Stat)
		b.state.SetSkill(skill, env.Stat.XP, env.Stat.Level)
	}
	if env.QuestPoints != nil {
		b.state.SetQuestPoints(*env.QuestPoints)
	}
	if env.Instanced != nil {
		b.state.SetInstanced(*env.Instanced)
	}
	switch {
	case env.ClearPlayer:
		b.state.SetPlayer(nil)
	case env.Player != nil:
		b.state.SetPlayer(env.Player)
	}
	if env.Kind == KindGameState {
		gs, _ := game.ParseGameState(env.State)
		b.state.SetGameState(gs)
	}
}
