// Package repl implements the interactive FHIRPath shell: a readline
// loop that evaluates expressions against a loaded resource, with
// history, completion and a few colon commands.
package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"fhirpath/engine"
	"fhirpath/logging"
	"fhirpath/pkg/ast"
	"fhirpath/pkg/parser"
	"fhirpath/shared"
)

// Config controls the shell.
type Config struct {
	Prompt      string
	HistoryFile string
	ShowWelcome bool
}

// REPL is the interactive shell state.
type REPL struct {
	cfg      Config
	eng      *engine.Engine
	logger   logging.Logger
	resource interface{}
	trace    bool
	out      io.Writer
}

// New creates a shell over an engine.
func New(cfg Config, eng *engine.Engine, logger logging.Logger) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = "fhirpath> "
	}
	return &REPL{cfg: cfg, eng: eng, logger: logger, out: os.Stdout}
}

// LoadResource loads a JSON resource file as the evaluation input.
func (r *REPL) LoadResource(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read resource: %w", err)
	}
	var resource interface{}
	if err := json.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("failed to parse resource JSON: %w", err)
	}
	r.resource = resource
	return nil
}

// Run starts the interactive loop and blocks until exit.
func (r *REPL) Run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.cfg.Prompt,
		HistoryFile:     r.cfg.HistoryFile,
		AutoComplete:    newCompleter(r),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	if r.cfg.ShowWelcome {
		fmt.Fprintln(r.out, "FHIRPath interactive shell. Type :help for commands.")
	}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if r.command(line) {
				return nil
			}
			continue
		}
		r.evaluate(line)
	}
}

// command handles a colon command; true means quit.
func (r *REPL) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true
	case ":help", ":h":
		fmt.Fprint(r.out, `Commands:
  :load FILE     load a JSON resource as evaluation input
  :ast EXPR      print the parsed tree of an expression
  :trace on|off  toggle trace() output
  :vars          list standard environment variables
  :quit          leave the shell
`)
	case ":load":
		if len(fields) < 2 {
			fmt.Fprintln(r.out, "usage: :load FILE")
			return false
		}
		if err := r.LoadResource(fields[1]); err != nil {
			r.logger.Error("load failed", logging.Field("error", err))
			return false
		}
		fmt.Fprintln(r.out, "resource loaded")
	case ":ast":
		expr := strings.TrimSpace(strings.TrimPrefix(line, ":ast"))
		if expr == "" {
			fmt.Fprintln(r.out, "usage: :ast EXPR")
			return false
		}
		r.printAST(expr)
	case ":trace":
		if len(fields) > 1 && fields[1] == "on" {
			r.trace = true
		} else if len(fields) > 1 && fields[1] == "off" {
			r.trace = false
		}
		fmt.Fprintf(r.out, "trace: %v\n", r.trace)
	case ":vars":
		io.WriteString(r.out, "%context, %resource, %rootResource, %ucum\n")
	default:
		fmt.Fprintf(r.out, "unknown command %s (try :help)\n", fields[0])
	}
	return false
}

func (r *REPL) evaluate(expr string) {
	if r.trace {
		result, err := engine.Inspect(expr, r.resource)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return
		}
		if len(result.Errors) > 0 {
			for _, d := range result.Errors {
				fmt.Fprintf(r.out, "error: %v\n", d)
			}
			return
		}
		for _, t := range result.Traces {
			fmt.Fprintf(r.out, "TRACE[%s] %s\n", t.Name, shared.FormatCollection(t.Values))
		}
		fmt.Fprintf(r.out, "%s  (%s)\n", shared.FormatCollection(result.Result), result.Duration)
		return
	}
	result, err := engine.Evaluate(expr, r.resource)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, shared.FormatCollection(result))
}

func (r *REPL) printAST(expr string) {
	node, err := parser.Parse(expr)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	printTree(r.out, node, 0)
}

func printTree(w io.Writer, node *ast.Node, depth int) {
	if node == nil {
		return
	}
	fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", depth), node.String(), node.Rng)
	for _, c := range node.Children() {
		printTree(w, c, depth+1)
	}
}
