package services

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"market-surplus/models"
)

// Reporter prints result bundles as a terminal report.
type Reporter struct {
	color bool
}

// NewReporter enables ANSI colours only when w is a terminal.
func NewReporter(w io.Writer) *Reporter {
	f, ok := w.(*os.File)
	return &Reporter{color: ok && term.IsTerminal(int(f.Fd()))}
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Print writes one bundle.
func (r *Reporter) Print(w io.Writer, b *models.ResultBundle) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n%s\n", r.paint("1;35", sep))
	fmt.Fprintf(w, "%s\n", r.paint("1;35", "  MARKET EQUILIBRIUM: "+b.Dataset))
	fmt.Fprintf(w, "%s\n\n", r.paint("1;35", sep))

	fmt.Fprintf(w, "%s\n", r.paint("1;33", "  Fitted Curves"))
	fmt.Fprintf(w, "  %s\n", thin)
	r.printLine(w, "Demand", b.Demand, b.DemandFit)
	r.printLine(w, "Supply", b.Supply, b.SupplyFit)
	fmt.Fprintln(w)

	if b.Equilibrium != nil {
		fmt.Fprintf(w, "%s\n", r.paint("1;33", "  Equilibrium"))
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Quantity : %s\n", r.paint("1;32", fmt.Sprintf("%.4f", b.Equilibrium.Quantity)))
		fmt.Fprintf(w, "  Price    : %s\n", r.paint("1;32", fmt.Sprintf("%.4f", b.Equilibrium.Price)))
		fmt.Fprintln(w)
	}

	if b.Surplus != nil {
		fmt.Fprintf(w, "%s\n", r.paint("1;33", "  Surplus"))
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Consumer : %s\n", r.paint("1;32", fmt.Sprintf("%.4f", b.Surplus.Consumer)))
		fmt.Fprintf(w, "  Producer : %s\n", r.paint("1;32", fmt.Sprintf("%.4f", b.Surplus.Producer)))
		fmt.Fprintf(w, "  Total    : %.4f\n", b.Surplus.Total())
		fmt.Fprintln(w)
	}

	if len(b.Warnings) > 0 {
		fmt.Fprintf(w, "%s\n", r.paint("1;33", "  Warnings"))
		fmt.Fprintf(w, "  %s\n", thin)
		for _, wr := range b.Warnings {
			fmt.Fprintf(w, "  %s %s\n", r.paint("33", "["+string(wr.Kind)+"]"), wr.Message)
		}
		fmt.Fprintln(w)
	}

	if b.Failure != nil {
		fmt.Fprintf(w, "%s\n", r.paint("1;31", "  Calculation Failed"))
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Stage : %s\n", b.Failure.Stage)
		fmt.Fprintf(w, "  Kind  : %s\n", r.paint("1;31", b.Failure.Kind))
		fmt.Fprintf(w, "  %s\n\n", b.Failure.Message)
	}

	fmt.Fprintf(w, "%s\n\n", r.paint("1;35", sep))
}

func (r *Reporter) printLine(w io.Writer, name string, line *models.LineModel, fit *models.FitStats) {
	if line == nil {
		fmt.Fprintf(w, "  %-6s : not available\n", name)
		return
	}

	fmt.Fprintf(w, "  %-6s : %s\n", name, r.paint("1", line.String()))
	if q, ok := line.QuantityAtZeroPrice(); ok {
		fmt.Fprintf(w, "           intercepts Q=%.4f, P=%.4f\n", q, line.Intercept)
	} else {
		fmt.Fprintf(w, "           intercept P=%.4f\n", line.Intercept)
	}
	if fit != nil {
		fmt.Fprintf(w, "           n=%d, R²=%.4f\n", fit.N, fit.RSquared)
	}
}
