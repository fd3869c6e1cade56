package scene

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Unit is the display unit for distances. Storage is always meters.
type Unit string

const (
	UnitFeet   Unit = "feet"
	UnitMeters Unit = "meters"
)

// Allowed safety distances, in feet of fallout radius per inch of caliber.
const (
	SafetyDistanceStandard     = 70
	SafetyDistanceConservative = 100
)

// Setting names accepted by SetSetting.
const (
	SettingUnit           = "measurementUnit"
	SettingSafetyDistance = "safetyDistance"
	SettingProjectName    = "projectName"
	SettingShowHeight     = "showHeight"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Settings are the scene-wide display options.
type Settings struct {
	Unit           Unit   `json:"measurementUnit" yaml:"measurementUnit" enum:"feet,meters" doc:"Display unit"`
	SafetyDistance int    `json:"safetyDistance" yaml:"safetyDistance" enum:"70,100" doc:"Feet of fallout radius per inch of shell caliber"`
	ProjectName    string `json:"projectName" yaml:"projectName" maxLength:"200" doc:"Project name shown in reports"`
	ShowHeight     bool   `json:"showHeight" yaml:"showHeight" doc:"Render firework height volumes"`
}

// DefaultSettings returns the settings of an empty scene.
func DefaultSettings() Settings {
	return Settings{Unit: UnitFeet, SafetyDistance: SafetyDistanceStandard}
}

// ParseUnit validates a unit name.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(s)); u {
	case UnitFeet, UnitMeters:
		return u, nil
	}
	return "", fmt.Errorf("%w: unit %q", ErrInvalidSetting, s)
}

// ValidSafetyDistance reports whether d is one of the allowed values.
func ValidSafetyDistance(d int) bool {
	return d == SafetyDistanceStandard || d == SafetyDistanceConservative
}

// Camera is the map viewpoint stored alongside the scene.
type Camera struct {
	Center  orb.Point `json:"center" yaml:"center" doc:"Map center [lng, lat]"`
	Zoom    float64   `json:"zoom" yaml:"zoom" doc:"Zoom level"`
	Bearing float64   `json:"bearing" yaml:"bearing" doc:"Rotation in degrees"`
	Pitch   float64   `json:"pitch" yaml:"pitch" doc:"Tilt in degrees"`
}

// DefaultCamera looks at the continental United States.
func DefaultCamera() Camera {
	return Camera{Center: orb.Point{-98.5795, 39.8283}, Zoom: 4}
}

// coerce helpers accept the loose types that arrive from JSON bodies and
// Datastar signals.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}
