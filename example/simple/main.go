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
		fmt.Println("Transcript Parser - Simple Example")
		fmt.Println("")
		fmt.Println("Parses text that was already extracted from a transcript PDF.")
		fmt.Println("")
		fmt.Println("Usage: go run example/simple/main.go <path-to-text-file>")
		fmt.Println("")
		fmt.Println("Example:")
		fmt.Println("  pdftotext transcript.pdf transcript.txt")
		fmt.Println("  go run example/simple/main.go transcript.txt")
		os.Exit(1)
	}

	textPath := os.Args[1]

	data, err := os.ReadFile(textPath)
	if err != nil {
		log.Fatal("could not read file", "path", textPath, "err", err)
	}

	// Create a new parser
	parser := transcript.NewParser()

	// Parse the text
	fmt.Printf("Parsing: %s\n\n", textPath)
	result := parser.ParseText(string(data))

	// Print the results as JSON
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal("failed to marshal JSON", "err", err)
	}

	fmt.Println(string(jsonData))
}
