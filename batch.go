package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"fhirpath/engine"
	"fhirpath/logging"
	"fhirpath/shared"
)

// BatchMode evaluates newline-separated expressions from a file
// against one resource, reporting per-line results and diagnostics.
// Lines starting with // are comments.
func BatchMode(exprPath, resourcePath string, config *Config, logger logging.Logger) error {
	resource, err := loadResource(resourcePath)
	if err != nil {
		return err
	}

	f, err := os.Open(exprPath)
	if err != nil {
		return fmt.Errorf("failed to open expression file: %w", err)
	}
	defer f.Close()

	failed := 0
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		logger.Debug("evaluating", logging.Field("line", lineNo), logging.Field("expr", line))
		result, err := engine.Evaluate(line, resource)
		if err != nil {
			failed++
			fmt.Printf("%d: %s\n   error: %v\n", lineNo, line, err)
			continue
		}
		out, jsonErr := shared.FormatJSON(result)
		if jsonErr != nil {
			out = shared.FormatCollection(result)
		}
		fmt.Printf("%d: %s\n   %s\n", lineNo, line, out)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read expression file: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d expression(s) failed", failed)
	}
	return nil
}
