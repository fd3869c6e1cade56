package annotation

import "sort"

// NextNumber returns the smallest positive integer not in existing, so gaps
// left by deletions are filled before the sequence grows.
func NextNumber(existing []int) int {
	taken := make(map[int]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}
	for n := 1; ; n++ {
		if _, ok := taken[n]; !ok {
			return n
		}
	}
}

// Renumber assigns 1..N to entities in ascending order of their current
// number. Ties keep their relative order. The slice is sorted in place.
func Renumber(entities []*Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Number < entities[j].Number
	})
	for i, e := range entities {
		e.Number = i + 1
	}
}
