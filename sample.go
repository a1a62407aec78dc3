package hkgsafety

// SampleSize is the number of driver torque readings kept.
const SampleSize = 6

// Sample is a fixed-capacity history of readings, newest first. Min and Max
// cover every slot, including slots not yet written (zero).
type Sample struct {
	values [SampleSize]int
	Min    int
	Max    int
}

// Update inserts v as the newest reading, evicting the oldest.
func (s *Sample) Update(v int) {
	copy(s.values[1:], s.values[:SampleSize-1])
	s.values[0] = v
	s.Min, s.Max = v, v
	for _, x := range s.values[1:] {
		s.Min = min(s.Min, x)
		s.Max = max(s.Max, x)
	}
}

// Values returns the readings, newest first.
func (s *Sample) Values() [SampleSize]int {
	return s.values
}
