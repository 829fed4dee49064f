package host

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/tickstats/pkg/game"
)

func TestStateDefaults(t *testing.T) {
	s := NewState(nil)

	assert.Equal(t, 1, s.RealSkillLevel(game.Attack))
	assert.Equal(t, 10, s.RealSkillLevel(game.Hitpoints))
	assert.Equal(t, 32, s.TotalLevel())
	assert.Equal(t, int64(1154), s.OverallExperience())

	_, ok := s.LocalPlayer()
	assert.False(t, ok)
}

func TestStateSkills(t *testing.T) {
	s := NewState(nil)

	require.True(t, s.SetSkill(game.Attack, 13_034_431, 99))
	assert.False(t, s.SetSkill(game.Overall, 1, 1))
	assert.False(t, s.SetSkill(game.Skill(-1), 1, 1))

	assert.Equal(t, 13_034_431, s.SkillExperience(game.Attack))
	assert.Equal(t, int64(13_034_431+1154), s.OverallExperience())
	assert.Equal(t, 32+98, s.TotalLevel())
	assert.Equal(t, s.TotalLevel(), s.RealSkillLevel(game.Overall))
}

func TestStatePlayerIsCopied(t *testing.T) {
	s := NewState(nil)
	p := &game.Player{Name: "Zezima"}
	s.SetPlayer(p)
	p.Name = "changed"

	got, ok := s.LocalPlayer()
	require.True(t, ok)
	assert.Equal(t, "Zezima", got.Name)

	s.SetPlayer(nil)
	_, ok = s.LocalPlayer()
	assert.False(t, ok)
}

func TestLoadItemDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	data := `[
		{"id": 385, "name": "Shark", "store_price": 1000, "market_price": 900},
		{"id": 386, "name": "Shark", "store_price": 1000, "market_price": 900, "canonical_id": 385}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	db, err := LoadItemDB(path)
	require.NoError(t, err)

	assert.Equal(t, 2, db.Len())
	assert.Equal(t, 385, db.Canonicalize(386))
	assert.Equal(t, 385, db.Canonicalize(385))
	assert.Equal(t, 42, db.Canonicalize(42))

	comp, ok := db.ItemComposition(385)
	require.True(t, ok)
	assert.Equal(t, game.ItemComposition{ID: 385, Name: "Shark", Price: 1000}, comp)

	_, ok = db.ItemPrice(42)
	assert.False(t, ok)
}

func TestLoadItemDBErrors(t *testing.T) {
	_, err := LoadItemDB(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = LoadItemDB(path)
	assert.Error(t, err)
}
