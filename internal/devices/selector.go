package devices

import "math/rand/v2"

// Available reports whether a listener can join the receiver right now:
// active, not full and reachable by url. A record without a computed ratio
// counts as full.
func Available(rec Record) bool {
	if rec.Status() != StatusActive || rec.URL() == "" {
		return false
	}
	ratio, ok := rec.Float(FieldUsersRatio)
	if !ok {
		ratio = 100
	}
	return ratio < 100
}

// PickRandomAvailable returns a uniformly chosen available record. rng may be
// nil to use the package-level source.
func PickRandomAvailable(records []Record, rng *rand.Rand) (Record, bool) {
	eligible := make([]Record, 0, len(records))
	for _, rec := range records {
		if Available(rec) {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}

	var i int
	if rng != nil {
		i = rng.IntN(len(eligible))
	} else {
		i = rand.IntN(len(eligible))
	}
	return eligible[i], true
}
