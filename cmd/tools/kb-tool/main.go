// kb-tool inspects a knowledge base file and runs diagnoses against it
// from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
