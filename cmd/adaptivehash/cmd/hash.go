package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash a password and print the JSON record",
	Long: `Hashes a password with a fresh random salt, doubling the work until both
--min-time and --min-iterations-log2 are met, and prints the record.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHasher()
		if err != nil {
			return err
		}
		pw, err := readPassword(cmd)
		if err != nil {
			return err
		}
		record, err := h.MakeContext(cmd.Context(), pw)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), record)
		return err
	},
}

func init() {
	addPasswordFlag(hashCmd)
}
