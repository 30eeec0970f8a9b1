package session

import "fmt"

// The named declaration gates, in display order. Every one must be accepted
// before a session may begin.
const (
	GateReadInstructions     = "read_instructions"
	GateUnderstandTiming     = "understand_timing"
	GateUnderstandAutoSubmit = "understand_auto_submit"
	GateUnderstandTracking   = "understand_tracking"
	GateReadyToBegin         = "ready_to_begin"
)

var declarationGates = []string{
	GateReadInstructions,
	GateUnderstandTiming,
	GateUnderstandAutoSubmit,
	GateUnderstandTracking,
	GateReadyToBegin,
}

// scrollBottomThreshold is how close (in pixels) to the end of the
// instructions content counts as having read it all.
const scrollBottomThreshold = 10

// Declaration is the checklist of consent gates on the declaration screen.
type Declaration struct {
	checked map[string]bool
}

// NewDeclaration returns a declaration with every gate unchecked.
func NewDeclaration() *Declaration {
	d := &Declaration{checked: make(map[string]bool, len(declarationGates))}
	for _, g := range declarationGates {
		d.checked[g] = false
	}
	return d
}

// Gates returns the gate names in display order.
func (d *Declaration) Gates() []string {
	out := make([]string, len(declarationGates))
	copy(out, declarationGates)
	return out
}

// Set checks or unchecks one gate.
func (d *Declaration) Set(gate string, accepted bool) error {
	if _, ok := d.checked[gate]; !ok {
		return fmt.Errorf("declaration: unknown gate %q", gate)
	}
	d.checked[gate] = accepted
	return nil
}

// Checked reports one gate's state.
func (d *Declaration) Checked(gate string) bool {
	return d.checked[gate]
}

// AllPassed reports whether every gate is accepted.
func (d *Declaration) AllPassed() bool {
	for _, g := range declarationGates {
		if !d.checked[g] {
			return false
		}
	}
	return true
}

// InstructionsGate is the scroll-to-bottom gate on the instructions screen.
// Once the reader has reached the bottom the gate stays passed; scrolling
// back up does not revoke it.
type InstructionsGate struct {
	passed bool
}

// Update feeds the current scroll geometry. The gate passes when the viewport
// bottom is within scrollBottomThreshold pixels of the content end.
func (g *InstructionsGate) Update(scrollTop, viewportHeight, contentHeight float64) {
	if contentHeight-scrollTop-viewportHeight < scrollBottomThreshold {
		g.passed = true
	}
}

// Passed reports whether the content has been scrolled to its end.
func (g *InstructionsGate) Passed() bool {
	return g.passed
}

// Gates bundles the two entry gates. A session will not begin until both
// report passed.
type Gates struct {
	Instructions *InstructionsGate
	Declaration  *Declaration
}

// NewGates returns fresh, unpassed entry gates.
func NewGates() *Gates {
	return &Gates{
		Instructions: &InstructionsGate{},
		Declaration:  NewDeclaration(),
	}
}

// Passed reports whether both the instructions scroll gate and every
// declaration gate have been satisfied.
func (g *Gates) Passed() bool {
	return g.Instructions.Passed() && g.Declaration.AllPassed()
}
