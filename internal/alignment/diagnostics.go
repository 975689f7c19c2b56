package alignment

import "fmt"

// Thresholds for non-fatal findings.
const (
	deviationFatal   = 0.01
	deviationWarning = 0.001
	modelTestWarning = 10.0
	wTestRecommend   = 200.0
)

// DiagnosticKind classifies a non-fatal finding.
type DiagnosticKind int

const (
	// IllConditioned: max|N·N⁻¹ − I| in (0.001, 0.01].
	IllConditioned DiagnosticKind = iota
	// PoorModelFit: overall model test above 10 on the final iteration.
	PoorModelFit
	// LargeWTest: final max w-test above 200, the a priori sigma is likely wrong.
	LargeWTest
)

func (k DiagnosticKind) String() string {
	switch k {
	case IllConditioned:
		return "ill-conditioned"
	case PoorModelFit:
		return "poor-model-fit"
	case LargeWTest:
		return "large-w-test"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic is a structured warning collected during estimation.
type Diagnostic struct {
	Kind      DiagnosticKind
	Iteration int     // 1-based solve count
	Axis      Axis    // affected axis, AxisBoth when not axis specific
	Value     float64 // the statistic that triggered the finding
	Index     int     // observation index for LargeWTest, -1 otherwise
}

func (d Diagnostic) String() string {
	switch d.Kind {
	case IllConditioned:
		return fmt.Sprintf("iteration %d: maximum deviation N*inv(N) from unity = %.3g, between %g and %g",
			d.Iteration, d.Value, deviationWarning, deviationFatal)
	case PoorModelFit:
		return fmt.Sprintf("iteration %d: overall model test %s = %.3f is larger than %g (model or a priori sigma not correct)",
			d.Iteration, d.Axis, d.Value, modelTestWarning)
	case LargeWTest:
		return fmt.Sprintf("iteration %d: max w-test %.1f exceeds %g, consider removing observation %d and re-running",
			d.Iteration, d.Value, wTestRecommend, d.Index)
	default:
		return fmt.Sprintf("iteration %d: %s %.3g", d.Iteration, d.Kind, d.Value)
	}
}

// Axis names an output axis of the coregistration polynomial.
type Axis int

const (
	AxisBoth Axis = iota
	AxisRow
	AxisCol
)

func (a Axis) String() string {
	switch a {
	case AxisRow:
		return "row"
	case AxisCol:
		return "col"
	default:
		return "both"
	}
}
