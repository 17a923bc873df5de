package cmd

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hasbyte1/go-adaptive-hash/hashing"
)

var algorithmsCmd = &cobra.Command{
	Use:   "algorithms",
	Short: "List the supported digest algorithms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := hashing.DefaultRegistry()
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Algorithm", "Digest bytes", "Default")
		for _, a := range reg.Algorithms() {
			size, err := reg.Size(a)
			if err != nil {
				return err
			}
			def := ""
			if a == hashing.DefaultAlgorithm {
				def = "*"
			}
			if err := table.Append([]string{string(a), strconv.Itoa(size), def}); err != nil {
				return err
			}
		}
		return table.Render()
	},
}
