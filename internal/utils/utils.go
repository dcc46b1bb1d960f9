package utils

import (
	"fmt"
	"os"
)

// Must stops the process on errors that happen before logging is set up.
func Must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
