package cmd

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info RECORD",
	Short: "Describe a record without verifying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHasher()
		if err != nil {
			return err
		}
		record, err := readRecord(cmd, args)
		if err != nil {
			return err
		}
		info, err := h.Info(record)
		if err != nil {
			return err
		}
		needs, err := h.NeedsRehash(record)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Field", "Value")
		rows := [][]string{
			{"algorithm", string(info.Algorithm)},
			{"iterations", "2^" + strconv.FormatUint(uint64(info.IterationsLog2), 10)},
			{"time", info.Elapsed.String()},
			{"salt bytes", strconv.Itoa(info.SaltLen)},
			{"needs upgrade", strconv.FormatBool(needs)},
		}
		for _, row := range rows {
			if err := table.Append(row); err != nil {
				return err
			}
		}
		return table.Render()
	},
}
