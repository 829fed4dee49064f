package game

// GameState is the client connection state
type GameState int

const (
	GameStateUnknown GameState = iota
	GameStateLoginScreen
	GameStateLoggingIn
	GameStateLoading
	GameStateLoggedIn
	GameStateConnectionLost
	GameStateHopping
)

var gameStateNames = [...]string{
	GameStateUnknown:        "UNKNOWN",
	GameStateLoginScreen:    "LOGIN_SCREEN",
	GameStateLoggingIn:      "LOGGING_IN",
	GameStateLoading:        "LOADING",
	GameStateLoggedIn:       "LOGGED_IN",
	GameStateConnectionLost: "CONNECTION_LOST",
	GameStateHopping:        "HOPPING",
}

func (s GameState) String() string {
	if s < 0 || int(s) >= len(gameStateNames) {
		return "UNKNOWN"
	}
	return gameStateNames[s]
}

// ParseGameState resolves a state by name
func ParseGameState(name string) (GameState, bool) {
	for i, n := range gameStateNames {
		if n == name {
			return GameState(i), true
		}
	}
	return GameStateUnknown, false
}

// WorldPoint is a tile in world coordinates
type WorldPoint struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Plane int `json:"plane"`
}

// Player is the local player as seen by the host.
// Empty Name and OverheadIcon mean the host has none.
type Player struct {
	Name         string     `json:"name"`
	Skulled      bool       `json:"skulled"`
	OverheadIcon string     `json:"overhead_icon"`
	Location     WorldPoint `json:"location"`
}
