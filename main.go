package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"fhirpath/engine"
	"fhirpath/logging"
	"fhirpath/pkg/ast"
	"fhirpath/pkg/parser"
	"fhirpath/repl"
	"fhirpath/shared"
)

const version = "0.1.0"

func main() {
	var (
		configPath   = flag.String("config", "", "Path to configuration file")
		showVersion  = flag.Bool("version", false, "Show version information")
		expression   = flag.String("e", "", "Evaluate an expression")
		resourcePath = flag.String("resource", "", "JSON resource file to evaluate against")
		dumpAST      = flag.Bool("ast", false, "Print the parsed tree instead of evaluating")
		interactive  = flag.Bool("i", false, "Interactive shell mode")
		execFile     = flag.String("exec", "", "Batch mode: evaluate expressions from a file")
		verbose      = flag.Bool("verbose", false, "Enable verbose output")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("fhirpath %s\n", version)
		return
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	level := logging.ParseLevel(config.Logging.Level)
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(level, os.Stderr)

	switch {
	case *execFile != "":
		if err := BatchMode(*execFile, *resourcePath, config, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case *interactive:
		eng := engine.New(engine.WithMaxDepth(config.Engine.MaxDepth))
		shell := repl.New(repl.Config{
			Prompt:      config.REPL.Prompt,
			HistoryFile: config.REPL.HistoryFile,
			ShowWelcome: config.REPL.ShowWelcome,
		}, eng, logger)
		if *resourcePath != "" {
			if err := shell.LoadResource(*resourcePath); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		if err := shell.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case *expression != "":
		if *dumpAST {
			if err := printAST(*expression); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		resource, err := loadResource(*resourcePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		result, err := engine.Evaluate(*expression, resource)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(shared.FormatCollection(result))

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func loadResource(path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}
	var resource interface{}
	if err := json.Unmarshal(data, &resource); err != nil {
		return nil, fmt.Errorf("failed to parse resource JSON: %w", err)
	}
	return resource, nil
}

func printAST(expression string) error {
	res, err := parser.ParseWithOptions(expression, parser.LSPOptions())
	if err != nil {
		return err
	}
	for _, d := range res.Errors {
		fmt.Fprintf(os.Stderr, "%v\n", d)
	}
	dumpNode(res.AST, 0)
	return nil
}

func dumpNode(node *ast.Node, depth int) {
	if node == nil {
		return
	}
	fmt.Printf("%*s%s  %s\n", depth*2, "", node.String(), node.Rng)
	for _, c := range node.Children() {
		dumpNode(c, depth+1)
	}
}
