package engine

// PointsPerTrait is the base score value of one recorded commonality.
const PointsPerTrait = 10

// TraitPoints returns the score delta earned by every member of a group
// when one member submits traitCount commonalities. Triples earn a 1.5x
// bonus, rounded down.
func TraitPoints(traitCount, groupSize int) int {
	points := traitCount * PointsPerTrait
	if groupSize == 3 {
		points = points * 3 / 2
	}
	return points
}
