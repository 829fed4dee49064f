package game

import "math"

const (
	// MaxRealLevel is the highest level shown by the game
	MaxRealLevel = 99
	// MaxVirtualLevel is the highest level derivable from experience
	MaxVirtualLevel = 126
	// MaxSkillXP caps experience in a single skill
	MaxSkillXP = 200_000_000
)

// xpForLevel[i] is the experience needed for level i+2
var xpForLevel [MaxVirtualLevel - 1]int

func init() {
	xp := 0
	for level := 1; level < MaxVirtualLevel; level++ {
		xp += int(float64(level) + 300*math.Pow(2, float64(level)/7.0))
		xpForLevel[level-1] = xp / 4
	}
}

// XPForLevel returns the experience needed to reach level. Level 1 needs none.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxVirtualLevel {
		level = MaxVirtualLevel
	}
	return xpForLevel[level-2]
}

// LevelForXP derives the virtual level (1..126) from experience.
// Negative experience is treated as zero.
func LevelForXP(xp int) int {
	low, high := 0, len(xpForLevel)-1
	for low <= high {
		mid := low + (high-low)/2
		switch need := xpForLevel[mid]; {
		case xp < need:
			high = mid - 1
		case xp > need:
			low = mid + 1
		default:
			return mid + 2
		}
	}
	return high + 2
}

// CombatLevelPrecise computes the unrounded combat level
func CombatLevelPrecise(attack, strength, defence, hitpoints, magic, ranged, prayer int) float64 {
	base := 0.25 * float64(defence+hitpoints+prayer/2)
	melee := 0.325 * float64(attack+strength)
	rangeLevel := 0.325 * float64(ranged/2+ranged)
	magicLevel := 0.325 * float64(magic/2+magic)
	return base + math.Max(melee, math.Max(rangeLevel, magicLevel))
}

// CombatLevel is the level displayed in game
func CombatLevel(attack, strength, defence, hitpoints, magic, ranged, prayer int) int {
	return int(CombatLevelPrecise(attack, strength, defence, hitpoints, magic, ranged, prayer))
}
