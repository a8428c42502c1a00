package contextfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"forgeshell/internal/logger"
)

// FileError means the top-level definition file itself could not be opened or
// parsed. It is the only fatal outcome of Load; everything else degrades to
// warnings inside the bundle.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("context file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Options controls loader behavior.
type Options struct {
	// AllowExternalPaths permits absolute paths and references that resolve
	// outside the definition file's directory. Off by default.
	AllowExternalPaths bool
}

// personaCategory is the reserved category name whose documents become persona ids.
const personaCategory = "personas"

// promptDirective is the reserved directive prefix supplying the initial
// prompt template. Last occurrence wins.
const promptDirective = "!prompt"

// docRefPattern matches document reference lines: `id: @relative/path`.
var docRefPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_.-]*)\s*:\s*@(.+)$`)

// Load parses the definition file at path into a Bundle.
//
// Line classification, in order: blank lines and `#` comments are skipped,
// `## Name` sets the current category, `!prompt <template>` sets the initial
// prompt template, `id: @rel/path` loads a document. Anything else is an
// unrecognized line and collected as a warning.
func Load(path string, opts Options) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	baseDir := filepath.Dir(path)
	bundle := &Bundle{docs: make(map[string]Document)}
	category := ""

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch classify(line) {
		case lineBlank, lineComment:
			continue
		case lineHeader:
			category = strings.TrimSpace(strings.TrimPrefix(line, "##"))
		case lineDirective:
			bundle.template = strings.TrimSpace(strings.TrimPrefix(line, promptDirective))
		case lineDocRef:
			m := docRefPattern.FindStringSubmatch(line)
			loadDocument(bundle, baseDir, m[1], m[2], category, opts)
		default:
			bundle.warnings = append(bundle.warnings, Warning{
				Path: path,
				Err:  fmt.Errorf("unrecognized line %d: %q", lineNo, line),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	logger.Debug("Context bundle loaded",
		"documents", len(bundle.docs),
		"personas", len(bundle.personaIDs),
		"warnings", len(bundle.warnings))
	return bundle, nil
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineHeader
	lineDirective
	lineDocRef
	lineUnknown
)

// classify assigns each trimmed line to exactly one kind. Header detection
// runs before comment detection since both start with '#'.
func classify(line string) lineKind {
	switch {
	case line == "":
		return lineBlank
	case strings.HasPrefix(line, "## "):
		return lineHeader
	case strings.HasPrefix(line, "#"):
		return lineComment
	case strings.HasPrefix(line, promptDirective+" ") || line == promptDirective:
		return lineDirective
	case docRefPattern.MatchString(line):
		return lineDocRef
	default:
		return lineUnknown
	}
}

// loadDocument resolves ref against baseDir and reads it into the bundle.
// Failures become warnings; a duplicate id overwrites the earlier document.
func loadDocument(bundle *Bundle, baseDir, id, ref, category string, opts Options) {
	resolved, err := resolvePath(baseDir, strings.TrimSpace(ref), opts)
	if err != nil {
		bundle.warnings = append(bundle.warnings, Warning{ID: id, Path: ref, Err: err})
		return
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		bundle.warnings = append(bundle.warnings, Warning{ID: id, Path: resolved, Err: err})
		return
	}

	if _, exists := bundle.docs[id]; exists {
		// Last write wins: keep the original position in declaration order.
		logger.Warn("Duplicate document id, later occurrence overwrites earlier", "id", id)
	} else {
		bundle.order = append(bundle.order, id)
		if strings.EqualFold(category, personaCategory) {
			bundle.personaIDs = append(bundle.personaIDs, id)
		}
	}
	bundle.docs[id] = Document{ID: id, Content: string(content), Category: category}
}

// resolvePath resolves ref relative to baseDir, denying absolute paths and
// parent-directory escapes unless explicitly allowed.
func resolvePath(baseDir, ref string, opts Options) (string, error) {
	if filepath.IsAbs(ref) {
		if !opts.AllowExternalPaths {
			return "", fmt.Errorf("absolute path denied: %s", ref)
		}
		return filepath.Clean(ref), nil
	}

	resolved := filepath.Clean(filepath.Join(baseDir, ref))
	if !opts.AllowExternalPaths {
		rel, err := filepath.Rel(baseDir, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path escapes context directory: %s", ref)
		}
	}
	return resolved, nil
}
