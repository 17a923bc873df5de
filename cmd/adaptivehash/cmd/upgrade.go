package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rehashWithPassword bool

var upgradeCmd = &cobra.Command{
	Use:   "upgrade RECORD",
	Short: "Strengthen a record to the configured policy",
	Long: `Continues the hash chain of a record until it meets --min-time and
--min-iterations-log2, without the password. Moving to another --algorithm
restarts the chain and needs the password (--with-password).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHasher()
		if err != nil {
			return err
		}
		record, err := readRecord(cmd, args)
		if err != nil {
			return err
		}

		var (
			out    string
			worked bool
		)
		if rehashWithPassword {
			pw, err := readPassword(cmd)
			if err != nil {
				return err
			}
			out, worked, err = h.RehashContext(cmd.Context(), pw, record)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "mismatch")
				return errMismatch
			}
		} else {
			out, worked, err = h.UpgradeContext(cmd.Context(), record)
			if err != nil {
				return err
			}
		}
		if !worked {
			klog.V(1).Info("record already meets the configured policy")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	upgradeCmd.Flags().BoolVar(&rehashWithPassword, "with-password", false, "Verify the password first so the algorithm can be changed.")
	addPasswordFlag(upgradeCmd)
}
