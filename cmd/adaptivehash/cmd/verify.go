package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var verifyCmd = &cobra.Command{
	Use:   "verify RECORD",
	Short: "Check a password against a record",
	Long: `Checks a password against a record and prints "match" or "mismatch".
The exit status is 1 on mismatch. Pass "-" to read the record from standard input;
the password must then come from --password or $ADAPTIVEHASH_PASSWORD.`,
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
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		ok, err := h.Check(pw, record)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "mismatch")
			return errMismatch
		}
		fmt.Fprintln(cmd.OutOrStdout(), "match")
		if needs, err := h.NeedsRehash(record); err == nil && needs {
			klog.Warningf("record is below the configured policy; run %q", "adaptivehash upgrade")
		}
		return nil
	},
}

func init() {
	addPasswordFlag(verifyCmd)
}
