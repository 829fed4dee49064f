// Package measure turns host events and the host's current state into
// measurements. Every function here is a read of the host snapshot; nothing
// performs I/O or blocks.
package measure

import (
	"github.com/vjranagit/tickstats/pkg/game"
	"github.com/vjranagit/tickstats/pkg/types"
	"github.com/vjranagit/tickstats/pkg/valuation"
)

// Series names
const (
	SeriesInventory = "rs_inventory"
	SeriesSkill     = "rs_skill"
	SeriesSelf      = "rs_self"
	SeriesSelfLoc   = "rs_self_loc"
)

// Field keys of the location series
const (
	SelfKeyX = "locX"
	SelfKeyY = "locY"
)

// Defaults for absent player attributes
const (
	NoName     = "none"
	NoOverhead = "NONE"
)

// ValueType selects which valuation an inventory series carries
type ValueType string

const (
	ValueGE    ValueType = "GE"
	ValueHA    ValueType = "HA"
	ValueCount ValueType = "COUNT"
)

// Client is the read-only view of the game client
type Client interface {
	Username() string
	SkillExperience(skill game.Skill) int
	OverallExperience() int64
	// RealSkillLevel is the unboosted level
	RealSkillLevel(skill game.Skill) int
	TotalLevel() int
	QuestPoints() int
	InInstancedRegion() bool
	// LocalPlayer returns false while no player is loaded
	LocalPlayer() (game.Player, bool)
}

// Creator builds measurements from the host state
type Creator struct {
	client     Client
	aggregator *valuation.Aggregator
}

// NewCreator creates a measurement creator
func NewCreator(client Client, prices valuation.PriceSource) *Creator {
	return &Creator{
		client:     client,
		aggregator: valuation.NewAggregator(prices),
	}
}

func (c *Creator) series(name string) *types.SeriesBuilder {
	return types.NewSeriesBuilder(name).Tag("user", c.client.Username())
}

// XPSeries identifies the experience series of a skill
func (c *Creator) XPSeries(skill game.Skill) types.Series {
	return c.series(SeriesSkill).Tag("skill", skill.String()).Build()
}

// XPMeasurement samples experience and levels of one skill. For Overall the
// virtual level is the sum of every skill's level derived from experience.
func (c *Creator) XPMeasurement(skill game.Skill) types.Measurement {
	var (
		xp           int64
		virtualLevel int
		realLevel    int
	)

	if skill == game.Overall {
		xp = c.client.OverallExperience()
		for _, s := range game.IndividualSkills() {
			virtualLevel += game.LevelForXP(c.client.SkillExperience(s))
		}
		realLevel = c.client.TotalLevel()
	} else {
		skillXP := c.client.SkillExperience(skill)
		xp = int64(skillXP)
		virtualLevel = game.LevelForXP(skillXP)
		realLevel = c.client.RealSkillLevel(skill)
	}

	return types.NewMeasurementBuilder(c.XPSeries(skill)).
		Int("xp", xp).
		Int("realLevel", int64(realLevel)).
		Int("virtualLevel", int64(virtualLevel)).
		Build()
}

// ItemSeries identifies one valuation series of a container
func (c *Creator) ItemSeries(inventory game.InventoryID, valueType ValueType) types.Series {
	return c.series(SeriesInventory).
		Tag("inventory", inventory.String()).
		Tag("type", string(valueType)).
		Build()
}

// ItemMeasurements values a container into GE, HA and quantity measurements
func (c *Creator) ItemMeasurements(inventory game.InventoryID, items []game.Item, topN int) []types.Measurement {
	return c.aggregator.Aggregate(items, topN).Measurements(
		c.ItemSeries(inventory, ValueGE),
		c.ItemSeries(inventory, ValueHA),
		c.ItemSeries(inventory, ValueCount),
	)
}

// SelfLocSeries identifies the player location series
func (c *Creator) SelfLocSeries() types.Series {
	return c.series(SeriesSelfLoc).Build()
}

// SelfLocMeasurement samples the player position. It reports false while
// there is no local player.
func (c *Creator) SelfLocMeasurement() (types.Measurement, bool) {
	player, ok := c.client.LocalPlayer()
	if !ok {
		return types.Measurement{}, false
	}

	instance := int64(0)
	if c.client.InInstancedRegion() {
		instance = 1
	}

	return types.NewMeasurementBuilder(c.SelfLocSeries()).
		Int(SelfKeyX, int64(player.Location.X)).
		Int(SelfKeyY, int64(player.Location.Y)).
		Int("plane", int64(player.Location.Plane)).
		Int("instance", instance).
		Build(), true
}

// SelfSeries identifies the player meta series
func (c *Creator) SelfSeries() types.Series {
	return c.series(SeriesSelf).Build()
}

// SelfMeasurement samples combat level, quest points and player status.
// It reports false while there is no local player.
func (c *Creator) SelfMeasurement() (types.Measurement, bool) {
	player, ok := c.client.LocalPlayer()
	if !ok {
		return types.Measurement{}, false
	}

	combat := game.CombatLevelPrecise(
		c.client.RealSkillLevel(game.Attack),
		c.client.RealSkillLevel(game.Strength),
		c.client.RealSkillLevel(game.Defence),
		c.client.RealSkillLevel(game.Hitpoints),
		c.client.RealSkillLevel(game.Magic),
		c.client.RealSkillLevel(game.Ranged),
		c.client.RealSkillLevel(game.Prayer),
	)

	skulled := int64(0)
	if player.Skulled {
		skulled = 1
	}

	return types.NewMeasurementBuilder(c.SelfSeries()).
		Float("combat", combat).
		Int("questPoints", int64(c.client.QuestPoints())).
		Int("skulled", skulled).
		String("name", firstNonEmpty(player.Name, NoName)).
		String("overhead", firstNonEmpty(player.OverheadIcon, NoOverhead)).
		Build(), true
}

func firstNonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
