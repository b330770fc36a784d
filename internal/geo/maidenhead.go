package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// LocatorPrecision is the number of character pairs in the dashboard's grid
// column (6 characters, e.g. JN18eu).
const LocatorPrecision = 3

var errPrecision = errors.New("maidenhead precision must be between 1 and 5")

// GridLocator returns the 6-character Maidenhead locator of c.
func GridLocator(c Coordinates) (string, error) {
	return Maidenhead(c, LocatorPrecision)
}

// Maidenhead encodes c with the given number of pairs. Pairs alternate between
// letters (field, subsquare) and digits (square); the subsquare pair is lower
// case.
func Maidenhead(c Coordinates, precision int) (string, error) {
	if precision < 1 || precision > 5 {
		return "", errPrecision
	}
	if _, err := finite(c); err != nil {
		return "", err
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return "", fmt.Errorf("%w: %.6f,%.6f out of range", ErrMalformedCoordinates, c.Lat, c.Lon)
	}

	// the north pole and antimeridian belong to the last field
	lon := math.Min(c.Lon+180, 360-1e-9)
	lat := math.Min(c.Lat+90, 180-1e-9)

	var b strings.Builder
	b.Grow(precision * 2)

	fieldLon, fieldLat := math.Floor(lon/20), math.Floor(lat/10)
	b.WriteByte('A' + byte(fieldLon))
	b.WriteByte('A' + byte(fieldLat))

	lon = (lon - fieldLon*20) / 2
	lat -= fieldLat * 10

	for i := 2; i <= precision; i++ {
		x, y := math.Floor(lon), math.Floor(lat)
		if i%2 == 0 {
			b.WriteByte('0' + byte(x))
			b.WriteByte('0' + byte(y))
			lon, lat = (lon-x)*24, (lat-y)*24
			continue
		}

		base := byte('A')
		if i == 3 {
			base = 'a'
		}
		b.WriteByte(base + byte(x))
		b.WriteByte(base + byte(y))
		lon, lat = (lon-x)*10, (lat-y)*10
	}

	return b.String(), nil
}
