// Package gametest provides deterministic randomness for tests of the chance mechanics.
package gametest

// Sequence returns the queued values in order and then keeps repeating the
// last one. An empty queue yields zero.
type Sequence struct {
	Ints   []int
	Floats []float64
}

// Intn returns the next queued integer modulo n.
func (s *Sequence) Intn(n int) int {
	v := 0
	if len(s.Ints) > 0 {
		v = s.Ints[0]
		if len(s.Ints) > 1 {
			s.Ints = s.Ints[1:]
		}
	}
	return v % n
}

// Float64 returns the next queued float.
func (s *Sequence) Float64() float64 {
	if len(s.Floats) == 0 {
		return 0
	}
	v := s.Floats[0]
	if len(s.Floats) > 1 {
		s.Floats = s.Floats[1:]
	}
	return v
}
