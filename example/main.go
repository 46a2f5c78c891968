package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	transcript "github.com/alparslanahmed/transcript-parser-go"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run example/main.go <path-to-pdf>")
		os.Exit(1)
	}

	pdfPath := os.Args[1]

	// Create a new parser
	parser := transcript.NewParser()
	parser.SetDebug(false) // Set to true to see extracted text

	// Parse the PDF
	result, err := parser.ParseFile(pdfPath)
	if err != nil {
		log.Fatal("failed to parse PDF", "path", pdfPath, "err", err)
	}

	// Print the results as JSON
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal("failed to marshal JSON", "err", err)
	}

	fmt.Println(string(jsonData))

	// Print specific fields
	fmt.Println("\n=== Extracted Information ===")
	if result.GPA != nil {
		fmt.Printf("Zwischennote: %.1f\n", *result.GPA)
	}
	if result.TotalCredits != nil {
		fmt.Printf("Gesamtcredits: %d\n", *result.TotalCredits)
	}

	if len(result.Courses) > 0 {
		fmt.Printf("\nModules (%d):\n", len(result.Courses))
		for _, c := range result.Courses {
			fmt.Printf("  - %s: %s\n", c.ModuleID, c.Grade)
		}
	}
}
