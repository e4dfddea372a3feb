package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// registerUploader registers the local object store uploader. Files are
// copied under the store directory with a unique key and addressed by a
// URL built from the configured base.
func registerUploader(r *tools.Registry, cfg Config) error {
	storeDir := cfg.StoreDir
	if storeDir == "" {
		storeDir = filepath.Join(cfg.WorkDir, "store")
	}
	baseURL := cfg.StoreBaseURL
	if baseURL == "" {
		baseURL = "file://"
	}

	return r.Register(&tools.Descriptor{
		Name:        "uploader",
		Version:     "1.0.0",
		Description: "Uploads files to the object store and returns their URLs",
		Category:    tools.CategoryStorage,
		Inputs: map[string]tools.SemanticType{
			"file_path": tools.SemFilePath,
		},
		Outputs: []string{"data.primary", "paths"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			paths := pathList(params["file_path"])
			if len(paths) == 0 {
				return nil, fmt.Errorf("uploader: no file_path given")
			}

			var urls []any
			var stored []string
			for _, src := range paths {
				key, dst, err := storeObject(storeDir, src)
				if err != nil {
					return nil, fmt.Errorf("uploader: %w", err)
				}
				urls = append(urls, objectURL(baseURL, key, dst))
				stored = append(stored, dst)
			}

			env := envelope.New("uploader", "1.0.0", params, started).
				WithPaths(stored...).
				WithCount("uploaded", float64(len(urls))).
				WithMessage(fmt.Sprintf("uploaded %d file(s)", len(urls)))
			if len(urls) == 1 {
				return env.WithPrimary(urls[0]), nil
			}
			return env.WithPrimary(urls), nil
		},
	})
}

// storeObject copies a file into the store under a collision-free key.
func storeObject(storeDir, src string) (key, dst string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer in.Close()

	key = uuid.NewString()[:8] + "_" + filepath.Base(src)
	dst = filepath.Join(storeDir, key)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return "", "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return "", "", err
	}
	return key, dst, nil
}

func objectURL(baseURL, key, dst string) string {
	if baseURL == "file://" {
		return "file://" + dst
	}
	return strings.TrimRight(baseURL, "/") + "/" + key
}

func pathList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
