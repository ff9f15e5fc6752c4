// Package main provides the entry point for the relay application
package main

import (
	"fmt"
	"os"
)

func main() {
	// Redirect to the actual CLI implementation
	fmt.Println("Please use the following command:")
	fmt.Println("  go run ./cmd/relayd          - Run the relay daemon")
	os.Exit(0)
}
