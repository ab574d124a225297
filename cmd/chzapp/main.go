// Command chzapp inspects and scaffolds the hook units of a chzapp
// application.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
