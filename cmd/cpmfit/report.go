package main

import (
	"fmt"
	"io"
	"sort"

	"sar-coreg/internal/alignment"
	"sar-coreg/internal/poly"
)

func printReport(w io.Writer, name string, res *alignment.Result) {
	fmt.Fprintf(w, "\n=== %s ===\n", name)
	fmt.Fprintf(w, "Degree: %d  window: %s\n", res.Degree, res.Window())
	fmt.Fprintf(w, "Termination: %s after %d solve(s), converged=%v\n", res.Termination, res.Iterations, res.Converged)
	fmt.Fprintf(w, "Observations: %d used, %d removed, window coverage %.1f%%\n",
		len(res.Observations), len(res.Removed), 100*res.Statistics.Coverage)

	fmt.Fprintf(w, "\nCoefficients (offset over normalized master coordinates):\n")
	fmt.Fprintf(w, "  %4s %4s %22s %22s\n", "x^", "y^", "row", "col")
	for i := range res.Row.Coefficients {
		px, py := poly.Exponents(i)
		fmt.Fprintf(w, "  %4d %4d %22.13e %22.13e\n", px, py, res.Row.Coefficients[i], res.Col.Coefficients[i])
	}

	if res.Degree == 1 {
		printAffine(w, res)
	}

	if res.Termination == alignment.TerminatedAligned {
		return
	}

	st := res.Statistics
	fmt.Fprintf(w, "\nResiduals over survivors:\n")
	fmt.Fprintf(w, "  row  mean %8.4f  std %8.4f\n", st.RowMean, st.RowStd)
	fmt.Fprintf(w, "  col  mean %8.4f  std %8.4f\n", st.ColMean, st.ColStd)
	fmt.Fprintf(w, "  rms  mean %8.4f  std %8.4f\n", st.RMSMean, st.RMSStd)
	fmt.Fprintf(w, "  max w-test row %.2f col %.2f, model test row %.3f col %.3f\n",
		st.MaxWRow, st.MaxWCol, st.ModelTestRow, st.ModelTestCol)

	printResiduals(w, res.Observations)

	if len(res.Removed) > 0 {
		fmt.Fprintf(w, "\nRemoved (in order):\n")
		for _, r := range res.Removed {
			fmt.Fprintf(w, "  iter %2d  id %5d  master (%9.2f, %9.2f)  w row %7.2f col %7.2f\n",
				r.Iteration, r.ID, r.Master.Row, r.Master.Col, r.WRow, r.WCol)
		}
	}
}

// printResiduals lists survivors from worst to best RMS.
func printResiduals(w io.Writer, obs []alignment.Observation) {
	sorted := make([]alignment.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RMS() > sorted[j].RMS() })

	fmt.Fprintf(w, "\n  %5s %9s %9s %8s %8s %8s %8s %7s %7s\n",
		"id", "m_row", "m_col", "off_row", "off_col", "e_row", "e_col", "w_row", "w_col")
	for _, o := range sorted {
		fmt.Fprintf(w, "  %5d %9.2f %9.2f %8.3f %8.3f %8.3f %8.3f %7.2f %7.2f\n",
			o.ID, o.Master.Row, o.Master.Col, o.Offset.Row, o.Offset.Col,
			o.Residual.Row, o.Residual.Col, o.WRow, o.WCol)
	}
}

// printAffine shows a degree 1 warp in both directions.
func printAffine(w io.Writer, res *alignment.Result) {
	tr, err := res.Affine()
	if err != nil {
		return
	}
	fmt.Fprintf(w, "\nAffine master -> slave:\n")
	fmt.Fprintf(w, "  row = %.9f*row + %.9f*col + %.6f\n", tr.A, tr.B, tr.TX)
	fmt.Fprintf(w, "  col = %.9f*row + %.9f*col + %.6f\n", tr.C, tr.D, tr.TY)

	inv, err := tr.Inverse()
	if err != nil {
		fmt.Fprintf(w, "  no inverse: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Affine slave -> master:\n")
	fmt.Fprintf(w, "  row = %.9f*row + %.9f*col + %.6f\n", inv.A, inv.B, inv.TX)
	fmt.Fprintf(w, "  col = %.9f*row + %.9f*col + %.6f\n", inv.C, inv.D, inv.TY)
}
