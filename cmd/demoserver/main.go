// Command demoserver starts a stand-in for the MedTriage analysis service.
// Usage: go run ./cmd/demoserver [port]
// Default port: 5000
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/medtriage/internal/demoserver"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   MedTriage Demo Analysis Service")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Findings are derived from the upload's SHA-256, so")
	fmt.Println("the same file always produces the same report.")
	fmt.Println()
	fmt.Println("Modes (POST /demo/mode, form value \"mode\"):")
	fmt.Println("  ok        - deterministic findings")
	fmt.Println("  error     - 500 with a message")
	fmt.Println("  malformed - 200 with an invalid result")
	fmt.Println("  garbage   - 200 with a non-JSON body")
	fmt.Println()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
