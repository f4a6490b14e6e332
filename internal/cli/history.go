package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/danielpatrickdp/projector-align/internal/state"
	"github.com/spf13/cobra"
)

var errNeedsSQLite = errors.New("version history requires the sqlite store backend")

// #region history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List a projector's persisted state versions with their decisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetString("device")
		last, _ := cmd.Flags().GetInt("last")

		ctx := cmd.Context()
		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.store == nil {
			return errNeedsSQLite
		}

		versions, err := e.store.ListVersionsWithProvenance(ctx, dev, last)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "no versions for %q\n", dev)
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tPHASE\tSTEP\tDECISION\tCREATED\tREASON")
		for _, v := range versions {
			phase, step := "?", "?"
			if st, err := state.Decode(v.Blob); err == nil {
				phase, step = string(st.Phase), fmt.Sprint(st.Step)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(v.VersionID), phase, step, v.Decision,
				v.CreatedAt.Format("2006-01-02T15:04:05Z"), v.Reason)
		}
		return tw.Flush()
	},
}

// #endregion history

// #region rollback
var rollbackCmd = &cobra.Command{
	Use:   "rollback VERSION_ID",
	Short: "Make an earlier state version active again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetString("device")

		ctx := cmd.Context()
		e, err := open(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.store == nil {
			return errNeedsSQLite
		}

		if err := e.store.Rollback(ctx, dev, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now at version %s\n", dev, args[0])
		return nil
	},
}

// #endregion rollback

func init() {
	for _, c := range []*cobra.Command{historyCmd, rollbackCmd} {
		c.Flags().String("device", "", "device key (the projector's full name)")
		_ = c.MarkFlagRequired("device")
	}
	historyCmd.Flags().Int("last", 20, "show N most recent versions")
}
