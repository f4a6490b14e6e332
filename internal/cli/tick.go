package cli

import (
	"fmt"
	"io"

	"github.com/danielpatrickdp/projector-align/internal/driver"
	"github.com/spf13/cobra"
)

// #region tick
var tickCmd = &cobra.Command{
	Use:   "tick [reset]",
	Short: "Run one alignment tick",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) == 1 {
			arg = args[0]
		}
		return runOnce(cmd, arg)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the projector's search state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd, driver.ResetCommand)
	},
}

func runOnce(cmd *cobra.Command, arg string) error {
	ctx := cmd.Context()
	e, err := open(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	drv, err := e.newDriver(cmd.OutOrStdout(), nil)
	if err != nil {
		return err
	}
	rep := drv.Tick(ctx, arg)
	printReport(cmd.OutOrStdout(), rep)
	if rep.Outcome == driver.OutcomeFatal {
		return rep.Err
	}
	return nil
}

// #endregion tick

// #region report
func printReport(w io.Writer, rep driver.Report) {
	fmt.Fprintf(w, "outcome=%s phase=%s decision=%s step=%d fitness=%.4f",
		rep.Outcome, rep.Phase, rep.Decision, rep.Step, rep.Fitness)
	if rep.Applies {
		fmt.Fprintf(w, " applied=%q", rep.Applied.String())
	}
	if rep.VersionID != "" {
		fmt.Fprintf(w, " version=%s", shortID(rep.VersionID))
	}
	fmt.Fprintln(w)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion report
