package lsh

// Fitness is either untested or tested. A tested fitness always has a
// collisions mean, and carries p1/p2 only when that mean is positive.
type Fitness struct {
	tested     bool
	collisions float64
	nearFar    *nearFar
	trials     int
	earlyExit  bool
}

type nearFar struct {
	p1 float64
	p2 float64
}

// Untested returns fitness of a never evaluated hash function
func Untested() Fitness {
	return Fitness{}
}

// Tested builds evaluation result; p1 and p2 are dropped when there were no collisions
func Tested(collisions, p1, p2 float64, trials int, earlyExit bool) Fitness {
	f := Fitness{
		tested:     true,
		collisions: collisions,
		trials:     trials,
		earlyExit:  earlyExit,
	}
	if collisions > 0 {
		f.nearFar = &nearFar{p1: p1, p2: p2}
	}
	return f
}

func (f Fitness) IsTested() bool {
	return f.tested
}

// Collisions returns mean number of query bucket collisions per trial
func (f Fitness) Collisions() (float64, bool) {
	return f.collisions, f.tested
}

// NearFar returns mean numbers of near and far points collided with the query
func (f Fitness) NearFar() (float64, float64, bool) {
	if f.nearFar == nil {
		return 0, 0, false
	}
	return f.nearFar.p1, f.nearFar.p2, true
}

// Score is p1 - p2; ok is false while it is undefined
func (f Fitness) Score() (float64, bool) {
	if f.nearFar == nil {
		return 0, false
	}
	return f.nearFar.p1 - f.nearFar.p2, true
}

// Trials returns the number of executed trials
func (f Fitness) Trials() int {
	return f.trials
}

// EarlyExit reports that evaluation was cut short
func (f Fitness) EarlyExit() bool {
	return f.earlyExit
}
