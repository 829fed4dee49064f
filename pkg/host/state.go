// Package host keeps an in-memory snapshot of the game client state. It
// serves the read-only queries the measurement creator needs and is updated
// by the event bridge before each event is dispatched.
package host

import (
	"sync"

	"github.com/vjranagit/tickstats/pkg/game"
)

// State is a mutex-guarded snapshot of the client
type State struct {
	*ItemDB

	mu          sync.RWMutex
	username    string
	xp          [game.Overall]int
	realLevels  [game.Overall]int
	questPoints int
	instanced   bool
	player      *game.Player
	gameState   game.GameState
}

// NewState creates an empty snapshot backed by the given item database
func NewState(items *ItemDB) *State {
	if items == nil {
		items = NewItemDB()
	}
	s := &State{ItemDB: items}
	for i := range s.realLevels {
		s.realLevels[i] = 1
	}
	s.realLevels[game.Hitpoints] = 10
	s.xp[game.Hitpoints] = game.XPForLevel(10)
	return s
}

// SetUsername sets the login name
func (s *State) SetUsername(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = name
}

// SetSkill records experience and the unboosted level of one skill.
// Overall is derived and cannot be set.
func (s *State) SetSkill(skill game.Skill, xp, realLevel int) bool {
	if !skill.Valid() || skill == game.Overall {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.xp[skill] = xp
	s.realLevels[skill] = realLevel
	return true
}

// SetQuestPoints sets the quest point counter
func (s *State) SetQuestPoints(points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questPoints = points
}

// SetInstanced marks whether the player is in an instanced region
func (s *State) SetInstanced(instanced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanced = instanced
}

// SetPlayer replaces the local player; nil clears it
func (s *State) SetPlayer(p *game.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil {
		s.player = nil
		return
	}
	cp := *p
	s.player = &cp
}

// SetGameState records the connection state
func (s *State) SetGameState(gs game.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameState = gs
}

// GameState returns the connection state
func (s *State) GameState() game.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameState
}

func (s *State) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *State) SkillExperience(skill game.Skill) int {
	if skill == game.Overall {
		return int(s.OverallExperience())
	}
	if !skill.Valid() {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xp[skill]
}

func (s *State) OverallExperience() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, xp := range s.xp {
		total += int64(xp)
	}
	return total
}

func (s *State) RealSkillLevel(skill game.Skill) int {
	if skill == game.Overall {
		return s.TotalLevel()
	}
	if !skill.Valid() {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realLevels[skill]
}

func (s *State) TotalLevel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, lvl := range s.realLevels {
		total += lvl
	}
	return total
}

func (s *State) QuestPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questPoints
}

func (s *State) InInstancedRegion() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanced
}

func (s *State) LocalPlayer() (game.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.player == nil {
		return game.Player{}, false
	}
	return *s.player, true
}
