package cmd

import (
	"crypto/rand"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/hasbyte1/go-adaptive-hash/hashing"
)

var calibrateAll bool

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Measure the work the configured policy yields on this host",
	Long: `Hashes a random throwaway secret under the configured policy and reports
the work exponent and time each algorithm reached. With --all every supported
algorithm is measured, which takes at least --min-time per algorithm.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := policy()
		if _, err := hashing.NewHasher(opts); err != nil {
			return err
		}
		algs := []hashing.Algorithm{opts.Algorithm}
		if calibrateAll {
			algs = hashing.Algorithms()
		}

		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Algorithm", "Iterations log2", "Time")
		for _, a := range algs {
			s := hashing.New(opts.State)
			if _, err := s.HashPlaintextContext(cmd.Context(), secret, a, opts.MinTime, opts.MinIterationsLog2); err != nil {
				return err
			}
			klog.V(1).Infof("calibrated %s: 2^%d in %s", a, s.IterationsLog2(), s.Elapsed())
			row := []string{string(a), strconv.FormatUint(uint64(s.IterationsLog2()), 10), s.Elapsed().String()}
			if err := table.Append(row); err != nil {
				return err
			}
		}
		return table.Render()
	},
}

func init() {
	calibrateCmd.Flags().BoolVar(&calibrateAll, "all", false, "Measure every supported algorithm.")
}
