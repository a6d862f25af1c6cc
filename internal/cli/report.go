package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
	"github.com/hackgods/priority-appointment-scheduling/internal/demo"
)

// PrintReport writes a batch summary followed by the confirmed and the
// rejected requests, each in processing order.
func PrintReport(w io.Writer, r appointment.Report) {
	fmt.Fprintf(w, "\n--- Scheduling Results ---\n")
	fmt.Fprintf(w, "  Total requests: %d\n", r.Total())
	fmt.Fprintf(w, "  Confirmed: %d\n", len(r.Confirmed()))
	fmt.Fprintf(w, "  Failed: %d\n", len(r.Rejected()))
	fmt.Fprintf(w, "  Success rate: %.1f%%\n", r.SuccessRate())

	if confirmed := r.Confirmed(); len(confirmed) > 0 {
		fmt.Fprintf(w, "\nConfirmed appointments:\n")
		for _, e := range confirmed {
			fmt.Fprintf(w, "  - %s: %s (%s)", e.Patient, e.Outcome.SlotStart.Format("2006-01-02 15:04"), e.Priority)
			if e.Outcome.OffsetApplied != 0 {
				fmt.Fprintf(w, " moved %s", formatOffset(e.Outcome.OffsetApplied.Minutes()))
			}
			fmt.Fprintln(w)
		}
	}

	if rejected := r.Rejected(); len(rejected) > 0 {
		fmt.Fprintf(w, "\nFailed requests:\n")
		for _, e := range rejected {
			fmt.Fprintf(w, "  - %s: %s\n", e.Patient, e.Outcome.Reason)
		}
	}
}

func formatOffset(minutes float64) string {
	return fmt.Sprintf("%+.0f min", minutes)
}

// RunDemo runs the demo scenario and prints what happened.
func RunDemo(ctx context.Context, svc *appointment.Service, w io.Writer, opts demo.Options) (demo.Result, error) {
	res, err := demo.Run(ctx, svc, opts)
	if err != nil {
		return demo.Result{}, err
	}

	fmt.Fprintf(w, "Created calendar with %d slots\n", res.Slots)
	fmt.Fprintf(w, "\nSubmitted %d appointment requests:\n", res.Report.Total())
	for _, r := range demo.Scenario(opts.Day) {
		fmt.Fprintf(w, "  - %s: %s at %s\n", r.Patient, r.Priority, r.DesiredStart.Format("15:04"))
	}
	if opts.ExtraRequests > 0 {
		fmt.Fprintf(w, "  - plus %d generated requests\n", opts.ExtraRequests)
	}

	fmt.Fprintf(w, "\n--- Scheduling Results ---\n")
	fmt.Fprintf(w, "Success rate: %.1f%%\n", res.Report.SuccessRate())
	fmt.Fprintf(w, "\nConfirmed appointments (in scheduled order):\n")
	for _, e := range res.Report.Confirmed() {
		fmt.Fprintf(w, "  [%-9s] %-15s -> %s\n", e.Priority, e.Patient, e.Outcome.SlotStart.Format("15:04"))
	}
	if rejected := res.Report.Rejected(); len(rejected) > 0 {
		fmt.Fprintf(w, "\nRejected: %d\n", len(rejected))
	}

	fmt.Fprintf(w, "\nNote: Emergency patient Jane Doe was scheduled first,\n")
	fmt.Fprintf(w, "even though routine patient John Smith requested the same time.\n")
	return res, nil
}
