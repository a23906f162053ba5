// Command facectl runs maintenance operations directly against an identity
// store on disk. Group locks are per process, so it must not run against a
// data root that a live API server is writing to.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
