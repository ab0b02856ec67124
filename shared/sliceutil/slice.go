// Package sliceutil implements small set-style helpers over slices of
// validator indices, used where attesting-index sets from two different
// attestations need to be compared.
package sliceutil

// IntersectionUint64 of any number of uint64 slices with time
// complexity of approximately O(n) leveraging a map to
// check for element existence off by a constant factor
// of underlying map efficiency.
func IntersectionUint64(s ...[]uint64) []uint64 {
	if len(s) == 0 {
		return []uint64{}
	}
	if len(s) == 1 {
		return s[0]
	}
	set := make([]uint64, 0)
	m := make(map[uint64]bool)

	for i := 0; i < len(s[0]); i++ {
		m[s[0][i]] = true
	}
	for i := 0; i < len(s[1]); i++ {
		if _, found := m[s[1][i]]; found {
			set = append(set, s[1][i])
		}
	}

	for i := 2; i < len(s); i++ {
		tmp := make([]uint64, 0)
		m := make(map[uint64]bool)
		for j := 0; j < len(set); j++ {
			m[set[j]] = true
		}
		for j := 0; j < len(s[i]); j++ {
			if _, found := m[s[i][j]]; found {
				tmp = append(tmp, s[i][j])
			}
		}
		set = tmp
	}
	return set
}
