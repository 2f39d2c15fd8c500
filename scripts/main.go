package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/flexprice/parkingpermits/scripts/internal"
	"github.com/joho/godotenv"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "import-products",
		Description: "Import zone products from a CSV file",
		Run:         internal.ImportProducts,
	},
}

func main() {
	// Define command line flags
	var (
		listCommands bool
		cmdName      string
		productsFile string
		dryRun       bool
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&productsFile, "products-file", "", "Path to products CSV file")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate without writing")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	_ = godotenv.Load()

	// Set command-specific environment variables
	if productsFile != "" {
		os.Setenv("PRODUCTS_FILE", productsFile)
	}
	if dryRun {
		os.Setenv("DRY_RUN", "true")
	}

	// Find and run the command
	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
