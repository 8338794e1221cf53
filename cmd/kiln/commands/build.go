package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
)

func phaseFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("skip-toolchain", false, "Leave out the toolchain phase")
	cmd.Flags().String("phase", "", "Run a single phase (toolchain, base or desktop)")
}

func buildOptions(cmd *cobra.Command) app.BuildOptions {
	skip, _ := cmd.Flags().GetBool("skip-toolchain")
	phase, _ := cmd.Flags().GetString("phase")
	return app.BuildOptions{SkipToolchain: skip, Phase: domain.Phase(phase)}
}

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every package of the selected phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			reports, err := sess.Build(cmd.Context(), buildOptions(cmd))
			printSummary(cmd.OutOrStdout(), reports)
			return err
		},
	}
	phaseFlags(cmd)
	return cmd
}

func (c *CLI) newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and verify the sources of the selected phases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			return sess.Fetch(cmd.Context(), buildOptions(cmd))
		},
	}
	phaseFlags(cmd)
	return cmd
}

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved build order without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := c.open()
			if err != nil {
				return err
			}
			phases, err := sess.Phases(buildOptions(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, phase := range phases {
				plan, err := sess.Plan(phase)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s:\n", phase)
				i := 0
				for pkg := range plan.Walk() {
					i++
					_, _ = fmt.Fprintf(out, "  %d. %s\n", i, pkg.ID())
				}
				for _, name := range plan.Satisfied() {
					_, _ = fmt.Fprintf(out, "  -  %s (installed)\n", name)
				}
			}
			return nil
		},
	}
	phaseFlags(cmd)
	return cmd
}

func printSummary(w io.Writer, reports []app.PhaseReport) {
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "%s: %d done, %d failed, %d skipped\n", r.Phase,
			len(r.Report.Names(domain.StateDone)),
			len(r.Report.Names(domain.StateFailed)),
			len(r.Report.Names(domain.StateSkipped)),
		)
		for _, job := range r.Report.Jobs {
			switch job.State() {
			case domain.StateFailed, domain.StateSkipped:
				_, _ = fmt.Fprintf(w, "  %-8s %s: %v\n", job.State(), job.Package.ID(), job.Err())
			}
		}
	}
}
