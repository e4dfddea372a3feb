// Package adapt repairs shape and semantic mismatches between what a
// producer emitted and what a consumer expects. The parameter adapter
// coerces resolved parameter values across semantic categories (content to
// path, path to content, wrapped path to path); the output adapter repairs
// envelope key mismatches with aliasing, structural rules and a transformer
// catalogue, materializing in-memory images to files when a consumer wants
// paths.
package adapt

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// ParamAdapter coerces resolved parameter values toward a tool's declared
// input semantics. Failed adaptations leave the value untouched.
type ParamAdapter struct {
	tmpDir string
}

// ParamOption configures a ParamAdapter.
type ParamOption func(*ParamAdapter)

// WithTempDir sets the directory for materialized content files. Default
// is the OS temp directory.
func WithTempDir(dir string) ParamOption {
	return func(p *ParamAdapter) {
		p.tmpDir = dir
	}
}

// NewParamAdapter creates a parameter adapter.
func NewParamAdapter(opts ...ParamOption) *ParamAdapter {
	p := &ParamAdapter{tmpDir: os.TempDir()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Adapt returns a copy of params with values coerced toward the tool's
// declared input semantics. Parameters that already match, or that cannot
// be adapted, pass through unchanged.
func (p *ParamAdapter) Adapt(params map[string]any, d *tools.Descriptor) map[string]any {
	out := make(map[string]any, len(params))
	for name, value := range params {
		out[name] = p.adaptOne(name, value, d)
	}
	return out
}

func (p *ParamAdapter) adaptOne(name string, value any, d *tools.Descriptor) any {
	expected := d.InputSemantics(name)
	inferred := InferSemantic(name, value)

	if (expected == tools.SemFilePath || expected == tools.SemImageRef) && containsImages(value) {
		paths, err := materializeImagesTo(p.tmpDir, value)
		if err != nil {
			logger.Warn("Failed to materialize image parameter", "param", name, "error", err)
			return value
		}
		logger.Adaptation("param", name, "image", "file_path", "count", len(paths))
		if len(paths) == 1 {
			return paths[0]
		}
		out := make([]any, len(paths))
		for i, path := range paths {
			out[i] = path
		}
		return out
	}

	switch {
	case expected == tools.SemFilePath && inferred == semFileContent:
		if path, ok := p.contentToPath(name, value); ok {
			logger.Adaptation("param", name, "file_content", "file_path", "path", path)
			return path
		}
	case expected == tools.SemFilePath && inferred == semWrappedPath:
		if path, ok := extractPath(value); ok {
			logger.Adaptation("param", name, "dict", "file_path", "path", path)
			return path
		}
	case expected == tools.SemFileContent && inferred == semFilePath:
		if s, ok := value.(string); ok {
			if data, err := os.ReadFile(s); err == nil {
				logger.Adaptation("param", name, "file_path", "file_content", "path", s)
				return string(data)
			}
			// Unreadable paths pass through verbatim.
		}
	}
	return value
}

// Inferred semantic categories for parameter values.
const (
	semFilePath    = "file_path"
	semFileContent = "file_content"
	semWrappedPath = "wrapped_path"
	semURL         = "url"
	semUnknown     = "unknown"
)

var (
	fileNamePatternRE = regexp.MustCompile(`(?i)(file|path)`)
	contentNameRE     = regexp.MustCompile(`(?i)(content|text|data)`)
	urlNameRE         = regexp.MustCompile(`(?i)(url|link)`)
	knownExtRE        = regexp.MustCompile(`(?i)\.(txt|md|json|yaml|yml|csv|png|jpg|jpeg|bmp|gif|pdf|html|xml|log)$`)
)

// longContentThreshold is the string length above which a value is treated
// as file content rather than a path-like name.
const longContentThreshold = 200

// InferSemantic classifies a parameter value by its name and shape.
func InferSemantic(name string, value any) string {
	switch v := value.(type) {
	case string:
		return inferStringSemantic(name, v)
	case map[string]any:
		if _, ok := extractPath(v); ok {
			return semWrappedPath
		}
		for _, key := range []string{"content", "text"} {
			if _, ok := v[key]; ok {
				return semFileContent
			}
		}
	}
	return semUnknown
}

func inferStringSemantic(name, v string) string {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return semURL
	}
	if urlNameRE.MatchString(name) {
		return semURL
	}
	if len(v) > longContentThreshold || strings.Contains(v, "\n") {
		return semFileContent
	}
	if knownExtRE.MatchString(v) || strings.ContainsRune(v, os.PathSeparator) || strings.Contains(v, "/") {
		return semFilePath
	}
	if fileNamePatternRE.MatchString(name) {
		return semFilePath
	}
	if contentNameRE.MatchString(name) {
		return semFileContent
	}
	return semUnknown
}

// contentToPath writes string content to a deterministic file under the
// temp directory and returns the path. The filename comes from a leading
// Markdown heading when present, else from the parameter name.
func (p *ParamAdapter) contentToPath(name string, value any) (string, bool) {
	content, ok := value.(string)
	if !ok {
		return "", false
	}

	filename := headingFilename(content)
	if filename == "" {
		filename = slugify(name) + ".txt"
	}
	path := filepath.Join(p.tmpDir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Warn("Failed to materialize content parameter",
			"param", name, "path", path, "error", err)
		return "", false
	}
	return path, true
}

var headingRE = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// headingFilename derives "<slug>.md" from a leading Markdown heading.
func headingFilename(content string) string {
	for _, line := range strings.SplitN(content, "\n", 5) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := headingRE.FindStringSubmatch(line); m != nil {
			if slug := slugify(m[1]); slug != "" {
				return slug + ".md"
			}
		}
		break
	}
	return ""
}

var slugCleanRE = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func slugify(s string) string {
	slug := slugCleanRE.ReplaceAllString(strings.TrimSpace(s), "_")
	slug = strings.Trim(slug, "_")
	const maxSlugLen = 64
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug
}

// extractPath pulls a filesystem path string out of a dict that wraps one,
// recursing into nested dicts.
func extractPath(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"file_path", "path", "file"} {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case map[string]any:
			if path, ok := extractPath(v); ok {
				return path, true
			}
		}
	}
	for _, v := range m {
		if nested, ok := v.(map[string]any); ok {
			if path, ok := extractPath(nested); ok {
				return path, true
			}
		}
	}
	return "", false
}
