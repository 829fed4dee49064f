// Package collector holds the event handlers that turn host events into
// submitted measurements.
package collector

import (
	"github.com/go-logr/logr"

	"github.com/vjranagit/tickstats/pkg/event"
	"github.com/vjranagit/tickstats/pkg/game"
	"github.com/vjranagit/tickstats/pkg/measure"
	"github.com/vjranagit/tickstats/pkg/types"
)

// Submitter is the producer side of the writer
type Submitter interface {
	Submit(m types.Measurement)
	IsBlocked(s types.Series) bool
}

// Tracking toggles each measurement category
type Tracking struct {
	XP        bool
	BankValue bool
	SelfLoc   bool
	SelfMeta  bool
}

// ContainerTable maps a tracked container to the number of items named
// individually in its valuation. Containers missing from the table are
// ignored.
type ContainerTable map[game.InventoryID]int

// DefaultContainers tracks the bank and seed vault by item, and the carried
// inventory and equipment by totals only
func DefaultContainers() ContainerTable {
	return ContainerTable{
		game.InventoryBank:      25,
		game.InventorySeedVault: 25,
		game.InventoryMain:      0,
		game.InventoryEquipment: 0,
	}
}

// Collector reacts to host events
type Collector struct {
	tracking   Tracking
	containers ContainerTable
	creator    *measure.Creator
	out        Submitter
	logger     logr.Logger
}

// New creates a collector
func New(tracking Tracking, containers ContainerTable, creator *measure.Creator, out Submitter, logger logr.Logger) *Collector {
	if containers == nil {
		containers = DefaultContainers()
	}
	return &Collector{
		tracking:   tracking,
		containers: containers,
		creator:    creator,
		out:        out,
		logger:     logger.WithName("collector"),
	}
}

// Register subscribes the collector's handlers
func (c *Collector) Register(d *event.Dispatcher) {
	event.On(d, c.OnStatChanged)
	event.On(d, c.OnGameStateChanged)
	event.On(d, c.OnItemContainerChanged)
	event.On(d, c.OnGameTick)
}

// OnStatChanged samples the changed skill, and Overall with it
func (c *Collector) OnStatChanged(e event.StatChangedEvent) {
	if !c.tracking.XP || !e.Skill.Valid() {
		return
	}

	c.out.Submit(c.creator.XPMeasurement(e.Skill))
	if e.Skill != game.Overall {
		c.out.Submit(c.creator.XPMeasurement(game.Overall))
	}
}

// OnGameStateChanged seeds every skill series after logging in
func (c *Collector) OnGameStateChanged(e event.GameStateChangedEvent) {
	if e.State != game.GameStateLoggedIn || !c.tracking.XP {
		return
	}

	for _, s := range game.Skills() {
		c.out.Submit(c.creator.XPMeasurement(s))
	}
}

// OnItemContainerChanged values a tracked container unless its series was
// written recently
func (c *Collector) OnItemContainerChanged(e event.ItemContainerChangedEvent) {
	if !c.tracking.BankValue {
		return
	}
	if e.Container == nil || e.Container.Items == nil {
		return
	}

	inventory := game.InventoryID(e.ContainerID)
	topN, ok := c.containers[inventory]
	if !ok {
		return
	}

	if c.out.IsBlocked(c.creator.ItemSeries(inventory, measure.ValueHA)) {
		c.logger.V(2).Info("container valuation blocked", "inventory", inventory.String())
		return
	}

	for _, m := range c.creator.ItemMeasurements(inventory, e.Container.Items, topN) {
		c.out.Submit(m)
	}
}

// OnGameTick samples the player's location and meta
func (c *Collector) OnGameTick(event.GameTickEvent) {
	if c.tracking.SelfLoc {
		if m, ok := c.creator.SelfLocMeasurement(); ok {
			c.out.Submit(m)
		}
	}
	if c.tracking.SelfMeta {
		if m, ok := c.creator.SelfMeasurement(); ok {
			c.out.Submit(m)
		}
	}
}
