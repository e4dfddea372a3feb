package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// resolvePath anchors relative paths under the work dir and rejects
// escapes above it. Absolute paths are accepted only inside the work dir
// or the OS temp directory, where the engine materializes content.
func resolvePath(workDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}

	if filepath.IsAbs(path) {
		cleaned := filepath.Clean(path)
		if within(cleaned, workDir) || within(cleaned, os.TempDir()) {
			return cleaned, nil
		}
		return "", fmt.Errorf("path %s is outside the work dir", path)
	}

	cleaned := filepath.Clean(filepath.Join(workDir, path))
	if !within(cleaned, workDir) {
		return "", fmt.Errorf("path %s escapes the work dir", path)
	}
	return cleaned, nil
}

func within(path, root string) bool {
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

// registerFileWriter registers the file writer operator. It writes the
// text parameter to the path, or passes through an already materialized
// file when only a path is given.
func registerFileWriter(r *tools.Registry, cfg Config) error {
	return r.Register(&tools.Descriptor{
		Name:        "file_writer",
		Version:     "1.0.0",
		Description: "Writes text content to a file",
		Category:    tools.CategoryFileOperator,
		Inputs: map[string]tools.SemanticType{
			"text":      tools.SemFileContent,
			"path":      tools.SemFilePath,
			"file_path": tools.SemFilePath,
		},
		Outputs: []string{"data.primary", "paths"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			rawPath, _ := params["path"].(string)
			if rawPath == "" {
				rawPath, _ = params["file_path"].(string)
			}
			path, err := resolvePath(cfg.WorkDir, rawPath)
			if err != nil {
				return nil, fmt.Errorf("file_writer: %w", err)
			}

			if text, ok := params["text"].(string); ok {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return nil, fmt.Errorf("file_writer: %w", err)
				}
				if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
					return nil, fmt.Errorf("file_writer: %w", err)
				}
			} else if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("file_writer: no text and no existing file: %w", err)
			}

			return envelope.New("file_writer", "1.0.0", params, started).
				WithPrimary(path).
				WithPaths(path).
				WithMessage("file written").
				WithCount("bytes", float64(fileSize(path))), nil
		},
	})
}

// registerFileReader registers the file reader operator.
func registerFileReader(r *tools.Registry, cfg Config) error {
	return r.Register(&tools.Descriptor{
		Name:        "file_reader",
		Version:     "1.0.0",
		Description: "Reads a file and returns its content",
		Category:    tools.CategoryFileOperator,
		Inputs: map[string]tools.SemanticType{
			"file_path": tools.SemFilePath,
		},
		Outputs: []string{"data.primary", "paths"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			rawPath, _ := params["file_path"].(string)
			path, err := resolvePath(cfg.WorkDir, rawPath)
			if err != nil {
				return nil, fmt.Errorf("file_reader: %w", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("file_reader: %w", err)
			}

			return envelope.New("file_reader", "1.0.0", params, started).
				WithPrimary(string(data)).
				WithPaths(path).
				WithCount("bytes", float64(len(data))).
				WithMessage("file read"), nil
		},
	})
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
