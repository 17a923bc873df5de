package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// readPassword returns the --password flag, then $ADAPTIVEHASH_PASSWORD,
// then the first line of standard input.
func readPassword(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed(flagPassword) {
		return cmd.Flags().GetString(flagPassword)
	}
	if pw := viper.GetString(flagPassword); pw != "" {
		return pw, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) {
		return "", errors.New("no password given: use --password, $ADAPTIVEHASH_PASSWORD or standard input")
	}
	return line, nil
}

// readRecord returns the record argument, or standard input when the
// argument is "-".
func readRecord(cmd *cobra.Command, args []string) (string, error) {
	if args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading record: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func addPasswordFlag(c *cobra.Command) {
	c.Flags().String(flagPassword, "", "Password to hash. Read from $ADAPTIVEHASH_PASSWORD or the first line of standard input when unset.")
}
