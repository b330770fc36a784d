package geo

import (
	"errors"
	"fmt"
	"math"
)

// DirectionLabels are the cardinal letters used in display strings.
type DirectionLabels struct {
	North string
	South string
	East  string
	West  string
}

// EnglishLabels is the default N/S/E/W set.
var EnglishLabels = DirectionLabels{North: "N", South: "S", East: "E", West: "W"}

// FormatDisplay renders c as "48.8567°N, 2.3508°E".
func FormatDisplay(c Coordinates, labels DirectionLabels) string {
	latDir := labels.North
	if c.Lat < 0 {
		latDir = labels.South
	}
	lonDir := labels.East
	if c.Lon < 0 {
		lonDir = labels.West
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", math.Abs(c.Lat), latDir, math.Abs(c.Lon), lonDir)
}

// DisplayOrRaw formats a raw gps value for display. Unparseable values are
// returned unchanged; nil or empty values yield nil.
func DisplayOrRaw(raw any, labels DirectionLabels) any {
	c, err := ParseCoordinates(raw)
	switch {
	case errors.Is(err, ErrNoCoordinates):
		return nil
	case err != nil:
		return raw
	}
	return FormatDisplay(c, labels)
}
