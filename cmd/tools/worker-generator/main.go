// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name        string
	PackageName string
	TaskType    string
	ElementID   string
	Timeout     string
	Cached      bool
}

var kebabName = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

func newWorkerData(taskType, timeout string, cached bool) (WorkerData, error) {
	if !kebabName.MatchString(taskType) {
		return WorkerData{}, fmt.Errorf("name %q must be kebab-case, e.g. icebreaker-ideas", taskType)
	}
	words := strings.Split(taskType, "-")
	display := make([]string, len(words))
	element := make([]string, len(words))
	for i, w := range words {
		display[i] = upperFirst(w)
		element[i] = upperFirst(w)
	}
	return WorkerData{
		Name:        strings.Join(display, " "),
		PackageName: strings.Join(words, ""),
		TaskType:    taskType,
		ElementID:   "Activity_" + strings.Join(element, ""),
		Timeout:     timeout,
		Cached:      cached,
	}, nil
}

// upperFirst makes the first character uppercase
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

const configTemplate = `package {{ .PackageName }}

import "time"

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
{{- if .Cached }}
	CacheTTL    time.Duration
{{- end }}
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  {{ .Timeout }},
{{- if .Cached }}
		CacheTTL: 24 * time.Hour,
{{- end }}
	}
}
`

const modelsTemplate = `package {{ .PackageName }}

import "vibe-workers/internal/common/generation"

type Input struct {
	Text string ` + "`json:\"text\"`" + `
}

type Output struct {
	Result string ` + "`json:\"result\"`" + `
}

// JobOutput is what the worker writes back to the process instance.
type JobOutput struct {
	Output
	GenerationMeta generation.Meta ` + "`json:\"generationMeta\"`" + `
}
`

const schemaTemplate = `package {{ .PackageName }}

import (
	"strings"

	"vibe-workers/internal/common/validation"
)

var outputSchema = validation.MustCompile(TaskType, ` + "`" + `{
	"type": "object",
	"required": ["result"],
	"properties": {
		"result": {"type": "string", "minLength": 1}
	}
}` + "`" + `)

var validateOutput = validation.Typed[Output](outputSchema, func(o *Output) error {
	o.Result = strings.TrimSpace(o.Result)
	if o.Result == "" {
		return validation.Semantic(TaskType, "result", "result is blank")
	}
	return nil
})

// CheckOutput runs the output validator on a decoded JSON document.
func CheckOutput(doc interface{}) error {
	_, err := validateOutput(doc)
	return err
}
`

const handlerTemplate = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
{{ if .Cached }}
	"vibe-workers/internal/common/cache"
{{- end }}
	"vibe-workers/internal/common/camunda"
	"vibe-workers/internal/common/errors"
	"vibe-workers/internal/common/generation"
	"vibe-workers/internal/common/logger"
	"vibe-workers/internal/common/prompt"
)

const TaskType = "{{ .TaskType }}"

type Handler struct {
	config   *Config
	service  *generation.Service
	errorHdl *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, service *generation.Service, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		service:  service,
		errorHdl: errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) useCase() generation.UseCase[Output] {
	return generation.UseCase[Output]{
		Name:        TaskType,
		Validate:    validateOutput,
		MaxAttempts: h.config.MaxAttempts,
{{- if .Cached }}
		CacheTTL:    h.config.CacheTTL,
{{- end }}
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job)
	if err != nil {
		h.errorHdl.HandleJobError(context.Background(), client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), camunda.GenerationTimeout(h.config.Timeout))
	defer cancel()
	ctx = generation.WithRequestID(ctx, fmt.Sprintf("job-%d", job.Key))

	resp, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHdl.HandleJobError(ctx, client, job, err)
		return
	}

	_ = camunda.CompleteJob(ctx, client, job, JobOutput{Output: resp.Data, GenerationMeta: resp.Meta}, h.logger)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*generation.Response[Output], error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewInvalidInputError("text is required")
	}

	p, err := prompt.Render(TaskType, prompt.Args{"text": text})
	if err != nil {
		return nil, errors.NewTemplateNotFoundError(TaskType)
	}

	resp, err := generation.Perform(ctx, h.service, h.useCase(), generation.Request{
		Prompt: p,
{{- if .Cached }}
		CacheKey: cache.Key(TaskType, text),
{{- end }}
	})
	if err != nil {
		return nil, errors.FromGeneration(TaskType, err)
	}
	return resp, nil
}
`

const testTemplate = `package {{ .PackageName }}

import (
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "test-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "{{ .ElementID }}",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// ==========================
// Schema Tests
// ==========================

func TestValidateOutput(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", ` + "`" + `{"result":"ok"}` + "`" + `, false},
		{"blank", ` + "`" + `{"result":"  "}` + "`" + `, true},
		{"missing", ` + "`" + `{}` + "`" + `, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &doc))
			err := CheckOutput(doc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ==========================
// Job Tests
// ==========================

func TestParseInput(t *testing.T) {
	input, err := parseInput(createMockJob(1, map[string]interface{}{"text": "hello"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", input.Text)
}
`

var templates = map[string]string{
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"schema.go":       schemaTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
}

// renderFiles executes every template and gofmts the result.
func renderFiles(data WorkerData) (map[string][]byte, error) {
	out := make(map[string][]byte, len(templates))
	for filename, tmplStr := range templates {
		tmpl, err := template.New(filename).Parse(tmplStr)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute template %s: %w", filename, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", filename, err)
		}
		out[filename] = src
	}
	return out, nil
}

func writeFiles(dir string, files map[string][]byte, force bool) error {
	if !force {
		if _, err := os.Stat(dir); err == nil {
			return fmt.Errorf("%s already exists, use -force to overwrite", dir)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	for filename, src := range files {
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, src, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("✓ Generated %s\n", path)
	}
	return nil
}

func main() {
	name := flag.String("name", "", "Use-case task type in kebab-case (e.g., icebreaker-ideas)")
	outputDir := flag.String("output", "./internal/workers/ai-generation/", "Output directory for the generated worker")
	timeout := flag.String("timeout", "60 * time.Second", "Default job timeout as a Go duration expression")
	cached := flag.Bool("cached", true, "Cache results by input")
	force := flag.Bool("force", false, "Overwrite an existing worker directory")
	flag.Parse()

	if *name == "" {
		fmt.Println("Usage: worker-generator --name <task-type> [--output <dir>] [--cached=false]")
		fmt.Println("\nExample:")
		fmt.Println("  go run cmd/tools/worker-generator/main.go --name icebreaker-ideas")
		os.Exit(1)
	}

	data, err := newWorkerData(*name, *timeout, *cached)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	files, err := renderFiles(data)
	if err != nil {
		fmt.Printf("Error rendering worker: %v\n", err)
		os.Exit(1)
	}

	workerDir := filepath.Join(*outputDir, data.TaskType)
	if err := writeFiles(workerDir, files, *force); err != nil {
		fmt.Printf("Error writing worker: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Worker scaffold generated successfully at: %s\n", workerDir)
	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Register a %q prompt template in internal/common/prompt/templates.go\n", data.TaskType)
	fmt.Printf("  2. Shape Input, Output and the output schema\n")
	fmt.Printf("  3. Add a fallback in internal/common/fallback/registry.go if callers need one\n")
	fmt.Printf("  4. Add the use case to pkg/registry/catalog.go and wire it in cmd/worker-manager/main.go and internal/api\n")
	fmt.Printf("  5. Add workers.%s to configs/config.yaml\n", data.TaskType)
}
