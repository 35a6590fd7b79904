// Package scanner implements the document-detection FSM and quadrilateral
// purity check from spec.md §4.2. The actual corner-detection/perspective
// math is a named external collaborator — this package owns only the FSM,
// the geometric validity check, and the CorrectPerspective seam.
package scanner

import "fmt"

// State is the scanner's closed FSM state set.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StatePreviewing State = "previewing"
	StateCropping   State = "cropping"
	StateConfirmed  State = "confirmed"
	StateError      State = "error"
)

var allowedTransitions = map[State][]State{
	StateIdle:       {StateScanning},
	StateScanning:   {StatePreviewing, StateError},
	StatePreviewing: {StateCropping, StateConfirmed, StateIdle},
	StateCropping:   {StatePreviewing, StateError},
	StateConfirmed:  {StateIdle},
	StateError:      {StateIdle},
}

// CanTransition reports whether from -> to is a legal FSM edge.
func CanTransition(from, to State) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}

// Scanner holds the current FSM state.
type Scanner struct {
	state State
}

// New builds a Scanner in the idle state.
func New() *Scanner {
	return &Scanner{state: StateIdle}
}

// State returns the current FSM state.
func (s *Scanner) State() State { return s.state }

// Transition moves the scanner to to, validating the edge.
func (s *Scanner) Transition(to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("scanner: illegal transition %s -> %s", s.state, to)
	}

	s.state = to

	return nil
}

// Point is a single 2D corner, in image pixel coordinates.
type Point struct {
	X, Y float64
}

// Quad is a candidate document quadrilateral, corners in order
// (clockwise or counter-clockwise, but consistently one or the other).
type Quad [4]Point

// IsPure validates a candidate quadrilateral per spec.md §4.2: all four
// corners finite, non-negative, distinct; cross products of consecutive
// edge vectors all same-sign (convex).
func (q Quad) IsPure() bool {
	for _, p := range q {
		if !isFiniteNonNegative(p) {
			return false
		}
	}

	if hasDuplicatePoint(q) {
		return false
	}

	return q.isConvex()
}

func isFiniteNonNegative(p Point) bool {
	if p.X < 0 || p.Y < 0 {
		return false
	}

	// NaN comparisons are always false, so a NaN coordinate slips past the
	// < 0 checks above but fails the < mathInf comparisons here; +Inf also
	// fails them.
	return p.X < mathInf && p.Y < mathInf
}

const mathInf = 1e308 // practical finite-pixel-coordinate ceiling

func hasDuplicatePoint(q Quad) bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return true
			}
		}
	}

	return false
}

// isConvex checks that cross products of consecutive edge vectors are all
// the same sign.
func (q Quad) isConvex() bool {
	sign := 0

	for i := 0; i < 4; i++ {
		a := q[i]
		b := q[(i+1)%4]
		c := q[(i+2)%4]

		cross := crossProduct(a, b, c)
		if cross == 0 {
			return false
		}

		s := 1
		if cross < 0 {
			s = -1
		}

		if sign == 0 {
			sign = s
		} else if sign != s {
			return false
		}
	}

	return true
}

func crossProduct(a, b, c Point) float64 {
	ab := Point{X: b.X - a.X, Y: b.Y - a.Y}
	bc := Point{X: c.X - b.X, Y: c.Y - b.Y}

	return ab.X*bc.Y - ab.Y*bc.X
}

// PerspectiveCorrector is the named external collaborator performing the
// actual corner-detection/warp math (spec.md §4.2).
type PerspectiveCorrector interface {
	// CorrectPerspective warps blob according to quad, producing a
	// stable-size output image (e.g. 800px long-edge WebP at quality
	// 0.85).
	CorrectPerspective(blob []byte, quad Quad) ([]byte, error)
}

// ScanResult is the outcome of one scan attempt.
type ScanResult struct {
	Blob    []byte
	Skipped bool
}

// SkipCrop produces a ScanResult that passes blob through unchanged,
// marking it as skipped — spec.md §4.2's "skip crop" exit.
func SkipCrop(blob []byte) ScanResult {
	return ScanResult{Blob: blob, Skipped: true}
}

// Crop runs the perspective correction seam and wraps its output.
func Crop(corrector PerspectiveCorrector, blob []byte, quad Quad) (ScanResult, error) {
	if !quad.IsPure() {
		return ScanResult{}, fmt.Errorf("scanner: impure quadrilateral %v", quad)
	}

	corrected, err := corrector.CorrectPerspective(blob, quad)
	if err != nil {
		return ScanResult{}, err
	}

	return ScanResult{Blob: corrected}, nil
}
