package model

import "fmt"

// Mode is the execution context selector. It only affects presentation.
type Mode string

const (
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

// Scene is the recognition target the page is configured for.
type Scene string

const (
	SceneEBike  Scene = "ebike"
	SceneRoad   Scene = "road"
	SceneWater  Scene = "water"
	SceneHelmet Scene = "helmet"
)

// Scenes lists every scene in display order.
var Scenes = []Scene{SceneEBike, SceneRoad, SceneWater, SceneHelmet}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeTest, ModeProduction:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ParseScene validates a scene string.
func ParseScene(s string) (Scene, error) {
	for _, sc := range Scenes {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scene %q", s)
}
