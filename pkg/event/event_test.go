package event

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"

	"github.com/vjranagit/tickstats/pkg/game"
)

func TestTypeString(t *testing.T) {
	assert.Equal(t, "StatChanged", StatChanged.String())
	assert.Equal(t, "GameTick", GameTick.String())
	assert.Equal(t, "Unknown", Type(999).String())
}

func TestDispatcher(t *testing.T) {
	t.Run("handlers only receive events they subscribed to", func(t *testing.T) {
		// Arrange
		d := NewDispatcher(logr.Discard())
		var stats []game.Skill
		var ticks int

		On(d, func(e StatChangedEvent) { stats = append(stats, e.Skill) })
		On(d, func(GameTickEvent) { ticks++ })

		// Act
		d.Dispatch(StatChangedEvent{Skill: game.Magic})
		d.Dispatch(GameTickEvent{})
		d.Dispatch(GameTickEvent{})
		d.Dispatch(GameStateChangedEvent{State: game.GameStateLoggedIn})

		// Assert
		assert.Equal(t, []game.Skill{game.Magic}, stats)
		assert.Equal(t, 2, ticks)
	})

	t.Run("handlers run in registration order", func(t *testing.T) {
		d := NewDispatcher(logr.Discard())
		var order []int

		d.Subscribe(GameTick, func(Event) { order = append(order, 1) })
		d.Subscribe(GameTick, func(Event) { order = append(order, 2) })
		d.Dispatch(GameTickEvent{})

		assert.Equal(t, []int{1, 2}, order)
	})

	t.Run("a panicking handler does not stop the others", func(t *testing.T) {
		d := NewDispatcher(logr.Discard())
		called := false

		d.Subscribe(GameTick, func(Event) { panic("boom") })
		d.Subscribe(GameTick, func(Event) { called = true })

		assert.NotPanics(t, func() { d.Dispatch(GameTickEvent{}) })
		assert.True(t, called)
	})
}
