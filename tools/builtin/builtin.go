// Package builtin ships the reference tool set: a corpus search source, a
// markdown report generator, file read/write operators, a local object
// store uploader and image load/rotate processors. The set is small but
// covers every tool category, so a default deployment can run real
// pipelines out of the box.
package builtin

import (
	"fmt"
	"os"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

// Config wires the builtin tools to their local resources.
type Config struct {
	// WorkDir is where file tools read and write. Required.
	WorkDir string

	// StoreDir is the uploader's object store root. Defaults to
	// WorkDir/store.
	StoreDir string

	// StoreBaseURL prefixes uploaded object keys. Defaults to "file://".
	StoreBaseURL string

	// Corpus seeds the search tool. Optional.
	Corpus []Document
}

// RegisterAll registers every builtin tool on the registry.
func RegisterAll(r *tools.Registry, cfg Config) error {
	if cfg.WorkDir == "" {
		return fmt.Errorf("builtin: WorkDir is required")
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("builtin: cannot create work dir: %w", err)
	}

	for _, register := range []func(*tools.Registry, Config) error{
		registerSearch,
		registerReport,
		registerFileWriter,
		registerFileReader,
		registerUploader,
		registerImageLoader,
		registerImageRotator,
	} {
		if err := register(r, cfg); err != nil {
			return err
		}
	}
	return nil
}
