package cmd

import (
	"context"
	"errors"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/hasbyte1/go-adaptive-hash/hashing"
)

const (
	envPrefix = "ADAPTIVEHASH"

	flagAlgorithm         = "algorithm"
	flagMinTime           = "min-time"
	flagMinIterationsLog2 = "min-iterations-log2"
	flagConfig            = "config"
	flagAcceptLegacy      = "accept-legacy"
	flagPassword          = "password"
)

// errMismatch signals a failed verification; Execute turns it into exit
// status 1 without logging.
var errMismatch = errors.New("password does not match")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "adaptivehash",
	Short: "Create, verify and upgrade self-calibrating password hashes",
	Long: `adaptivehash derives password verifiers by iterating a digest until hashing
takes at least --min-time and at least 2^--min-iterations-log2 applications.
Stored records can be strengthened later without the password.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.  It is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if errors.Is(err, errMismatch) {
			os.Exit(1)
		}
		klog.Exitf("adaptivehash: %v", err)
	}
}

func init() {
	klogFlags := goflag.NewFlagSet("klog", goflag.ExitOnError)
	klog.InitFlags(klogFlags)
	RootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	RootCmd.PersistentFlags().String(flagAlgorithm, string(hashing.DefaultAlgorithm),
		fmt.Sprintf("Digest for new hashes. Run %q to list the choices.", "adaptivehash algorithms"))
	RootCmd.PersistentFlags().Duration(flagMinTime, hashing.DefaultMinTime,
		"Minimum cumulative hashing time.")
	RootCmd.PersistentFlags().Uint(flagMinIterationsLog2, hashing.DefaultMinIterationsLog2,
		fmt.Sprintf("Minimum work exponent (at most %d).", hashing.MaxIterationsLog2))
	RootCmd.PersistentFlags().Bool(flagAcceptLegacy, false,
		"Also verify bcrypt and Argon2 strings so they can be migrated with upgrade --with-password.")
	RootCmd.PersistentFlags().String(flagConfig, "",
		"Path to a config file (YAML, JSON or TOML) holding algorithm, min-time and min-iterations-log2.")

	// Replaces '-' in flags with '_' in env variables
	// e.g. min-time => $ADAPTIVEHASH_MIN_TIME
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		klog.Exitf("unable to bind flags: %v", err)
	}

	RootCmd.AddCommand(hashCmd, verifyCmd, upgradeCmd, infoCmd, algorithmsCmd, calibrateCmd)
}

// initConfig reads in the config file if one was given.
func initConfig() error {
	path := viper.GetString(flagConfig)
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	klog.V(1).Infof("Using config file %s", viper.ConfigFileUsed())
	return nil
}

// policy returns the hasher options described by flags, environment and
// config file, in that order of precedence.
func policy() hashing.HasherOptions {
	return hashing.HasherOptions{
		Algorithm:         hashing.Algorithm(viper.GetString(flagAlgorithm)),
		MinTime:           viper.GetDuration(flagMinTime),
		MinIterationsLog2: viper.GetUint(flagMinIterationsLog2),
		AcceptLegacy:      viper.GetBool(flagAcceptLegacy),
		State:             hashing.Options{Logger: klog.Background()},
	}
}

func newHasher() (*hashing.Hasher, error) {
	return hashing.NewHasher(policy())
}
