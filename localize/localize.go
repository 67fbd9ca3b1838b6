// Package localize runs the demo-script localization pipeline: it joins the
// source paragraphs, splits the text into chunks, sends one prompt per chunk
// to a completer and concatenates the answers in chunk order.
package localize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/minios-linux/scriptloc/chunk"
	"github.com/minios-linux/scriptloc/langmeta"
	"github.com/minios-linux/scriptloc/prompt"
)

// ErrInvalidRequest is returned when a request is missing a required field.
var ErrInvalidRequest = errors.New("invalid localization request")

// Completer returns the completion for a single prompt.
// *completion.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is the input of one localization run.
type Request struct {
	// Paragraphs are the source paragraphs in document order.
	Paragraphs []string
	// Language is the target language, free text or a code such as "fr".
	Language string
	// Country is the country whose person names get replaced.
	Country string
	// Name is the replacement person name.
	Name string
}

// Validate checks that the target fields are set.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Language) == "" {
		missing = append(missing, "language")
	}
	if strings.TrimSpace(r.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Text joins the paragraphs with newlines.
func (r Request) Text() string {
	return strings.Join(r.Paragraphs, "\n")
}

// Result is the output of a successful run.
type Result struct {
	// Text is the concatenated completion of every chunk.
	Text string
	// Chunks is the number of chunks that were sent.
	Chunks int
	// Duration is the wall time of the run.
	Duration time.Duration
}

// ChunkError reports the chunk that aborted a run.
type ChunkError struct {
	// Index is the zero-based position of the failed chunk.
	Index int
	// Total is the number of chunks in the run.
	Total int
	// Completed is the number of chunks finished before the failure.
	Completed int
	// Err is the completer's error.
	Err error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d/%d failed: %v", e.Index+1, e.Total, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Options controls the pipeline.
type Options struct {
	// ChunkSize is the maximum number of characters per chunk. Default: 3500.
	ChunkSize int
	// Prompts are the prompt templates. Zero value uses the built-in ones.
	Prompts prompt.Builder
	// OnProgress is called after each chunk is appended.
	OnProgress func(done, total int)
	// OnLog emits log messages during a run.
	OnLog func(format string, args ...any)
}

func (o *Options) effectiveChunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return chunk.DefaultSize
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Pipeline localizes requests with one completer. It keeps no state between
// runs, so one Pipeline can serve concurrent requests if the completer can.
type Pipeline struct {
	completer Completer
	opts      Options
}

// New creates a pipeline.
func New(c Completer, opts Options) *Pipeline {
	return &Pipeline{completer: c, opts: opts}
}

// ChunkSize returns the chunk size used by Run.
func (p *Pipeline) ChunkSize() int { return p.opts.effectiveChunkSize() }

// Run localizes req. Chunks are processed one at a time and in order; the
// first failure aborts the run and no partial text is returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	chunks := chunk.Split(req.Text(), p.opts.effectiveChunkSize())
	target := prompt.Target{
		Language: langmeta.Resolve(req.Language),
		Country:  strings.TrimSpace(req.Country),
		Name:     strings.TrimSpace(req.Name),
	}

	p.opts.log("Localizing %d chunk(s) into %s", len(chunks), target.Language)

	var full strings.Builder
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, &ChunkError{Index: i, Total: len(chunks), Completed: i, Err: err}
		}
		out, err := p.completer.Complete(ctx, p.opts.Prompts.Build(c, target))
		if err != nil {
			return nil, &ChunkError{Index: i, Total: len(chunks), Completed: i, Err: err}
		}
		full.WriteString(out)
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(i+1, len(chunks))
		}
	}

	return &Result{
		Text:     full.String(),
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}, nil
}

// ---------------------------------------------------------------------------
// Output file name
// ---------------------------------------------------------------------------

// DefaultFilenameTemplate names the output document.
const DefaultFilenameTemplate = "{target_language}_demo_script.docx"

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// OutputFilename interpolates {target_language} in template with a file-name
// safe form of language. An empty template uses DefaultFilenameTemplate and
// an empty language becomes "localized".
func OutputFilename(template, language string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultFilenameTemplate
	}
	lang := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(language), "_")
	lang = strings.Trim(lang, "_.")
	if lang == "" {
		lang = "localized"
	}
	name := strings.ReplaceAll(template, "{target_language}", lang)
	// The template itself must not escape the output directory.
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if !strings.HasSuffix(strings.ToLower(name), ".docx") {
		name += ".docx"
	}
	return name
}
