// cmd/tools/usecase-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"vibe-workers/internal/common/fallback"
	"vibe-workers/internal/common/prompt"
	compat "vibe-workers/internal/workers/ai-generation/compatibility"
	cf "vibe-workers/internal/workers/ai-generation/conversation-feedback"
	pv "vibe-workers/internal/workers/ai-generation/photo-verification"
	pc "vibe-workers/internal/workers/ai-generation/practice-conversation"
	st "vibe-workers/internal/workers/ai-generation/summarize-text"
	vg "vibe-workers/internal/workers/ai-generation/vibe-generation"
	"vibe-workers/pkg/registry"
)

// outputCheckers validate a decoded document against each use case's output
// validator.
var outputCheckers = map[string]func(interface{}) error{
	st.TaskType:     st.CheckOutput,
	vg.TaskType:     vg.CheckOutput,
	compat.TaskType: compat.CheckOutput,
	pc.TaskType:     pc.CheckOutput,
	pv.TaskType:     pv.CheckOutput,
	cf.TaskType:     cf.CheckOutput,
}

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	asJSON := listCmd.Bool("json", false, "Print the catalog as JSON")

	name := renderCmd.String("name", "", "Template name (e.g., summarize-text)")
	args := renderCmd.String("args", "{}", "Template arguments: inline JSON or a path to a JSON file")

	out := exportCmd.String("out", "configs/usecase-registry.json", "Output path")

	path := validateCmd.String("path", "", "Optional exported registry file to compare with the catalog")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		if err := list(os.Stdout, *asJSON); err != nil {
			fmt.Printf("Error listing use cases: %v\n", err)
			os.Exit(1)
		}

	case "render":
		renderCmd.Parse(os.Args[2:])
		if *name == "" {
			fmt.Println("Error: name is required for render.")
			renderCmd.Usage()
			os.Exit(1)
		}
		text, err := render(*name, *args)
		if err != nil {
			fmt.Printf("Error rendering template: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(text)

	case "export":
		exportCmd.Parse(os.Args[2:])
		if err := registry.SaveRegistry(*out, registry.Catalog()); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported use-case registry to %s\n", *out)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		problems := validateCatalog(registry.Catalog())
		if *path != "" {
			problems = append(problems, compareWithFile(*path, registry.Catalog())...)
		}
		if len(problems) > 0 {
			fmt.Println("Registry validation failed:")
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func list(w io.Writer, asJSON bool) error {
	reg := registry.Catalog()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reg)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROUTE\tCACHED\tFALLBACK\tMULTIMODAL")
	for _, uc := range reg.UseCases {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%t\n", uc.ID, uc.Route, uc.Cached, uc.HasFallback, uc.Multimodal)
	}
	return tw.Flush()
}

// render accepts inline JSON or a path to a JSON file for args.
func render(name, rawArgs string) (string, error) {
	data := []byte(strings.TrimSpace(rawArgs))
	if len(data) == 0 {
		data = []byte("{}")
	}
	if data[0] != '{' {
		fileData, err := os.ReadFile(rawArgs)
		if err != nil {
			return "", fmt.Errorf("read args file: %w", err)
		}
		data = fileData
	}

	var args prompt.Args
	if err := json.Unmarshal(data, &args); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	return prompt.Render(name, args)
}

// validateCatalog checks that every use case has a template, a validator,
// and a fallback that passes that validator when one is registered.
func validateCatalog(reg *registry.UseCaseRegistry) []string {
	var problems []string
	seen := make(map[string]bool, len(reg.UseCases))

	for _, uc := range reg.UseCases {
		if seen[uc.ID] {
			problems = append(problems, fmt.Sprintf("duplicate use case %s", uc.ID))
		}
		seen[uc.ID] = true

		if uc.Template == "" {
			problems = append(problems, fmt.Sprintf("%s: no prompt template registered", uc.ID))
		}
		check, ok := outputCheckers[uc.ID]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: no output validator", uc.ID))
			continue
		}
		if !uc.HasFallback {
			continue
		}
		doc, err := fallback.Decode[interface{}](uc.ID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", uc.ID, err))
			continue
		}
		if err := check(doc); err != nil {
			problems = append(problems, fmt.Sprintf("%s: fallback fails validation: %v", uc.ID, err))
		}
	}

	for _, key := range fallback.Keys() {
		if !seen[key] {
			problems = append(problems, fmt.Sprintf("fallback %s has no use case", key))
		}
	}
	for _, name := range prompt.Names() {
		if !seen[name] {
			problems = append(problems, fmt.Sprintf("template %s has no use case", name))
		}
	}
	return problems
}

// compareWithFile reports use cases that differ between an exported file and
// the live catalog.
func compareWithFile(path string, live *registry.UseCaseRegistry) []string {
	stored, err := registry.LoadRegistry(path)
	if err != nil {
		return []string{fmt.Sprintf("load %s: %v", path, err)}
	}

	var problems []string
	for _, uc := range live.UseCases {
		got, ok := stored.Find(uc.ID)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s missing from %s", uc.ID, path))
		case got.Route != uc.Route || got.HasFallback != uc.HasFallback || got.Cached != uc.Cached:
			problems = append(problems, fmt.Sprintf("%s is stale in %s, re-run export", uc.ID, path))
		}
	}
	for _, uc := range stored.UseCases {
		if _, ok := live.Find(uc.ID); !ok {
			problems = append(problems, fmt.Sprintf("%s in %s is not a known use case", uc.ID, path))
		}
	}
	return problems
}

func help() {
	fmt.Print(`
Usage: usecase-registry <command> [flags]

Commands:
  list      List generation use cases
  render    Render a prompt template with arguments
  export    Write the use-case catalog as JSON
  validate  Check templates, validators and fallbacks agree
  help      Show this help message

Examples:
  usecase-registry list -json
  usecase-registry render -name summarize-text -args '{"text": "We met at the climbing gym."}'
  usecase-registry export -out configs/usecase-registry.json
  usecase-registry validate -path configs/usecase-registry.json

Use 'usecase-registry <command> -h' for more information about a command.
`)
}
