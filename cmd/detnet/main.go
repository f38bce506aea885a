// Entry point for the detnet CLI. All command handling lives in root.go.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
