package compass

import "math"

// Cardinal is one of the eight compass labels.
type Cardinal string

// The known cardinal directions, clockwise from North.
const (
	North     Cardinal = "North"
	Northeast Cardinal = "Northeast"
	East      Cardinal = "East"
	Southeast Cardinal = "Southeast"
	South     Cardinal = "South"
	Southwest Cardinal = "Southwest"
	West      Cardinal = "West"
	Northwest Cardinal = "Northwest"
)

var sectors = [...]Cardinal{
	North,
	Northeast,
	East,
	Southeast,
	South,
	Southwest,
	West,
	Northwest,
}

// CardinalFromDegrees buckets a heading into one of the eight 45° wide
// sectors. Sector boundaries sit halfway between adjacent directions, so
// 22.4° is still North while 22.6° is Northeast.
func CardinalFromDegrees(deg float64) Cardinal {
	return sectors[int(modAngDeg(deg+22.5)/45)]
}

// modAngDeg normalizes an angle in degrees to [0, 360).
func modAngDeg(deg float64) float64 {
	return math.Mod(math.Mod(deg, 360)+360, 360)
}
