// Package engine evaluates scene scripts. It wraps zygomys in a sandboxed
// environment and produces a scene.Document (sensors, cameras, surface,
// chunk transform and reference system) from user source code.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/sightline/pkg/scene"
	"github.com/chazu/sightline/pkg/surface/sdfx"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Options control how scripted solids become surfaces.
type Options struct {
	Trace     sdfx.TraceOptions // sphere-tracing limits for :sdf surfaces
	MeshCells int               // default marching-cubes resolution for :mesh surfaces
}

// Engine wraps the zygomys interpreter for scene evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	opts       Options
}

// NewEngine creates an Engine with default surface options.
func NewEngine() *Engine {
	return NewEngineWithOptions(Options{})
}

// NewEngineWithOptions creates an Engine with the given surface options.
func NewEngineWithOptions(opts Options) *Engine {
	if opts.MeshCells <= 0 {
		opts.MeshCells = sdfx.DefaultMeshCells
	}
	return &Engine{opts: opts}
}

// Evaluate takes scene source code and produces a new Document.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns document + nil errors + nil error
//   - On parse/eval failure: returns nil document + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*scene.Document, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		doc, evalErrs, err := e.evaluate(source)
		ch <- evalResult{doc: doc, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// maxSceneSize bounds scene files read by EvaluateFile.
const maxSceneSize = 16 * 1024 * 1024

// EvaluateFile reads and evaluates a scene file. The document is named
// after the file.
func (e *Engine) EvaluateFile(path string) (*scene.Document, []EvalError, error) {
	cleanPath := filepath.Clean(path)
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat scene file: %w", err)
	}
	if info.Size() > maxSceneSize {
		return nil, nil, fmt.Errorf("scene file too large: %d bytes (max %d)", info.Size(), maxSceneSize)
	}
	src, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	doc, evalErrs, err := e.Evaluate(string(src))
	if doc != nil && doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(cleanPath), filepath.Ext(cleanPath))
	}
	return doc, evalErrs, err
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*scene.Document, []EvalError, error) {
	// Empty source is a valid program that produces an empty document.
	if strings.TrimSpace(source) == "" {
		return scene.New(""), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := newBuilder(e.opts)
	registerBuiltins(env, b)

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	return b.doc, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
