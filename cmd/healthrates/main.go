// Command healthrates computes hospitalization and mortality rates per 100,000 inhabitants
// and relates them to municipal development classifications.
package main

import (
	"fmt"
	"os"
)

func main() {
	if e := rootCmd.Execute(); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}
