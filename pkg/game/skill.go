package game

// Skill is a trainable player skill
type Skill int

const (
	Attack Skill = iota
	Defence
	Strength
	Hitpoints
	Ranged
	Prayer
	Magic
	Cooking
	Woodcutting
	Fletching
	Fishing
	Firemaking
	Crafting
	Smithing
	Mining
	Herblore
	Agility
	Thieving
	Slayer
	Farming
	Runecraft
	Hunter
	Construction
	// Overall is the aggregate of every other skill
	Overall
)

var skillNames = [...]string{
	Attack:       "ATTACK",
	Defence:      "DEFENCE",
	Strength:     "STRENGTH",
	Hitpoints:    "HITPOINTS",
	Ranged:       "RANGED",
	Prayer:       "PRAYER",
	Magic:        "MAGIC",
	Cooking:      "COOKING",
	Woodcutting:  "WOODCUTTING",
	Fletching:    "FLETCHING",
	Fishing:      "FISHING",
	Firemaking:   "FIREMAKING",
	Crafting:     "CRAFTING",
	Smithing:     "SMITHING",
	Mining:       "MINING",
	Herblore:     "HERBLORE",
	Agility:      "AGILITY",
	Thieving:     "THIEVING",
	Slayer:       "SLAYER",
	Farming:      "FARMING",
	Runecraft:    "RUNECRAFT",
	Hunter:       "HUNTER",
	Construction: "CONSTRUCTION",
	Overall:      "OVERALL",
}

func (s Skill) String() string {
	if s < 0 || int(s) >= len(skillNames) {
		return "UNKNOWN"
	}
	return skillNames[s]
}

// Valid reports whether s is a known skill
func (s Skill) Valid() bool {
	return s >= 0 && s <= Overall
}

// Skills returns every skill, Overall last
func Skills() []Skill {
	out := make([]Skill, 0, len(skillNames))
	for s := Attack; s <= Overall; s++ {
		out = append(out, s)
	}
	return out
}

// IndividualSkills returns every skill except Overall
func IndividualSkills() []Skill {
	return Skills()[:Overall]
}

// ParseSkill resolves a skill by its upper-case name
func ParseSkill(name string) (Skill, bool) {
	for i, n := range skillNames {
		if n == name {
			return Skill(i), true
		}
	}
	return 0, false
}
