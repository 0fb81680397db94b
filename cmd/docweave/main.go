// Command docweave adds generated docstrings to a Python project, accepting
// only changes that leave the code structurally identical.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
