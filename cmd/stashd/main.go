// stashd is the seanstash enhancement daemon and capture CLI.
package main

import (
	"fmt"
	"os"

	"github.com/seanstash/stashd/internal/cmd"
	"github.com/seanstash/stashd/internal/daemon"
)

func main() {
	daemon.Version = cmd.Version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stashd: %v\n", err)
		os.Exit(1)
	}
}
