// Command adaptivehash creates, verifies and upgrades self-calibrating
// password hash records from the command line.
package main

import (
	"github.com/hasbyte1/go-adaptive-hash/cmd/adaptivehash/cmd"
)

func main() {
	cmd.Execute()
}
