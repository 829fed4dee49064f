package host

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tickstats/pkg/event"
	"github.com/vjranagit/tickstats/pkg/game"
)

func newBridge() (*Bridge, *State, *[]event.Event) {
	state := NewState(nil)
	d := event.NewDispatcher(logr.Discard())

	var seen []event.Event
	for _, typ := range []event.Type{event.StatChanged, event.ItemContainerChanged, event.GameTick, event.GameStateChanged} {
		d.Subscribe(typ, func(e event.Event) { seen = append(seen, e) })
	}
	return NewBridge(state, d, logr.Discard()), state, &seen
}

func ptr[T any](v T) *T { return &v }

func TestBridgeStat(t *testing.T) {
	b, state, seen := newBridge()

	require.NoError(t, b.Apply(Envelope{
		Kind: KindStat,
		Stat: &StatUpdate{Skill: "MAGIC", XP: 1_000_000, Level: 73},
	}))

	assert.Equal(t, 1_000_000, state.SkillExperience(game.Magic))
	assert.Equal(t, 73, state.RealSkillLevel(game.Magic))
	assert.Equal(t, []event.Event{event.StatChangedEvent{Skill: game.Magic}}, *seen)
}

func TestBridgeLogin(t *testing.T) {
	b, state, seen := newBridge()

	require.NoError(t, b.Apply(Envelope{
		Kind:     KindGameState,
		State:    "LOGGED_IN",
		Username: ptr("zezima"),
		Stats: []StatUpdate{
			{Skill: "ATTACK", XP: 13_034_431, Level: 99},
			{Skill: "COOKING", XP: 737_627, Level: 70},
		},
	}))

	assert.Equal(t, "zezima", state.Username())
	assert.Equal(t, game.GameStateLoggedIn, state.GameState())
	assert.Equal(t, 99, state.RealSkillLevel(game.Attack))
	assert.Equal(t, 70, state.RealSkillLevel(game.Cooking))
	assert.Equal(t, []event.Event{event.GameStateChangedEvent{State: game.GameStateLoggedIn}}, *seen)
}

func TestBridgeContainer(t *testing.T) {
	b, _, seen := newBridge()

	bank := &game.ItemContainer{ID: 95, Items: []game.Item{{ID: 995, Quantity: 10}}}
	require.NoError(t, b.Apply(Envelope{Kind: KindContainer, Container: bank}))
	require.NoError(t, b.Apply(Envelope{Kind: KindContainer, ContainerID: ptr(626)}))

	require.Len(t, *seen, 2)
	assert.Equal(t, event.ItemContainerChangedEvent{ContainerID: 95, Container: bank}, (*seen)[0])
	assert.Equal(t, event.ItemContainerChangedEvent{ContainerID: 626}, (*seen)[1])
}

func TestBridgeTick(t *testing.T) {
	b, state, seen := newBridge()

	require.NoError(t, b.Apply(Envelope{
		Kind:        KindTick,
		Player:      &game.Player{Name: "Zezima", Location: game.WorldPoint{X: 3222, Y: 3218}},
		Instanced:   ptr(true),
		QuestPoints: ptr(300),
	}))

	p, ok := state.LocalPlayer()
	require.True(t, ok)
	assert.Equal(t, 3222, p.Location.X)
	assert.True(t, state.InInstancedRegion())
	assert.Equal(t, 300, state.QuestPoints())

	require.NoError(t, b.Apply(Envelope{Kind: KindTick, ClearPlayer: true}))
	_, ok = state.LocalPlayer()
	assert.False(t, ok)
	assert.Len(t, *seen, 2)
}

func TestBridgeRejects(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown kind", Envelope{Kind: "chat"}},
		{"stat without stat", Envelope{Kind: KindStat}},
		{"unknown skill", Envelope{Kind: KindStat, Stat: &StatUpdate{Skill: "DUNGEONEERING"}}},
		{"overall cannot be set", Envelope{Kind: KindStat, Stat: &StatUpdate{Skill: "OVERALL"}}},
		{"negative xp", Envelope{Kind: KindStat, Stat: &StatUpdate{Skill: "MAGIC", XP: -1}}},
		{"container without id", Envelope{Kind: KindContainer}},
		{"unknown state", Envelope{Kind: KindGameState, State: "AFK"}},
		{"bad seed stat", Envelope{Kind: KindTick, Stats: []StatUpdate{{Skill: "nope"}}, QuestPoints: ptr(5)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, state, seen := newBridge()

			assert.Error(t, b.Apply(tc.env))
			assert.Empty(t, *seen)
			assert.Zero(t, state.QuestPoints())
		})
	}

	b, _, _ := newBridge()
	assert.ErrorIs(t, b.Apply(Envelope{Kind: "chat"}), ErrUnknownKind)
}
