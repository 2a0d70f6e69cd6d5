package main

import (
	"fmt"
	"os"

	"github.com/ghabrous/fgc-pm/internal/pmerrors"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return int(pmerrors.ExitCodeFor(err))
	}
	return 0
}
