package builtin

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"
)

func testCorpus() []Document {
	return []Document{
		{Title: "Go concurrency patterns", URL: "https://example.com/go", Snippet: "goroutines and channels"},
		{Title: "Rust ownership", URL: "https://example.com/rust", Snippet: "borrow checker explained"},
		{Title: "Go generics tutorial", URL: "https://example.com/generics", Snippet: "type parameters in go"},
	}
}

func newBuiltinRegistry(t *testing.T) (*tools.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r := tools.NewRegistry()
	require.NoError(t, RegisterAll(r, Config{WorkDir: dir, Corpus: testCorpus()}))
	return r, dir
}

func TestRegisterAllCoversEveryCategory(t *testing.T) {
	r, _ := newBuiltinRegistry(t)

	seen := make(map[tools.Category]bool)
	for _, d := range r.List() {
		seen[d.Category] = true
	}
	for _, cat := range []tools.Category{
		tools.CategoryDataSource,
		tools.CategoryDataProcessor,
		tools.CategoryFileOperator,
		tools.CategoryStorage,
	} {
		assert.True(t, seen[cat], "missing category %s", cat)
	}
}

func TestRegisterAllRequiresWorkDir(t *testing.T) {
	assert.Error(t, RegisterAll(tools.NewRegistry(), Config{}))
}

func TestSearchRanksByKeywordHits(t *testing.T) {
	r, _ := newBuiltinRegistry(t)

	env := r.Invoke(context.Background(), "search", map[string]any{"query": "go"})
	require.False(t, env.IsError(), env.Error)

	results, ok := env.Data.Primary.([]any)
	require.True(t, ok)
	require.Len(t, results, 2, "rust document must not match")

	first := results[0].(map[string]any)
	assert.Contains(t, first["title"], "Go")
	assert.Equal(t, float64(2), env.Data.Counts["primary"])
}

func TestSearchValidatesQuery(t *testing.T) {
	r, _ := newBuiltinRegistry(t)
	env := r.Invoke(context.Background(), "search", map[string]any{})
	assert.True(t, env.IsError())
}

func TestReportRendersSearchResults(t *testing.T) {
	r, _ := newBuiltinRegistry(t)

	env := r.Invoke(context.Background(), "report", map[string]any{
		"title": "Findings",
		"content": []any{
			map[string]any{"title": "Go concurrency patterns", "url": "https://example.com/go", "snippet": "goroutines"},
		},
	})
	require.False(t, env.IsError(), env.Error)

	md := env.Data.Primary.(string)
	assert.True(t, strings.HasPrefix(md, "# Findings\n"))
	assert.Contains(t, md, "## Go concurrency patterns")
	assert.Contains(t, md, "<https://example.com/go>")
}

func TestFileWriterAndReaderRoundTrip(t *testing.T) {
	r, dir := newBuiltinRegistry(t)

	env := r.Invoke(context.Background(), "file_writer", map[string]any{
		"text": "hello body",
		"path": "notes/hello.txt",
	})
	require.False(t, env.IsError(), env.Error)
	require.Len(t, env.Paths, 1)
	assert.True(t, strings.HasPrefix(env.Paths[0], dir))

	env = r.Invoke(context.Background(), "file_reader", map[string]any{
		"file_path": "notes/hello.txt",
	})
	require.False(t, env.IsError(), env.Error)
	assert.Equal(t, "hello body", env.Data.Primary)
}

func TestFileWriterRejectsEscapingPaths(t *testing.T) {
	r, _ := newBuiltinRegistry(t)
	env := r.Invoke(context.Background(), "file_writer", map[string]any{
		"text": "x",
		"path": "../../etc/evil.txt",
	})
	assert.True(t, env.IsError())
}

func TestUploaderStoresAndReturnsURL(t *testing.T) {
	r, dir := newBuiltinRegistry(t)

	src := filepath.Join(dir, "artifact.md")
	require.NoError(t, os.WriteFile(src, []byte("# doc"), 0o644))

	env := r.Invoke(context.Background(), "uploader", map[string]any{"file_path": src})
	require.False(t, env.IsError(), env.Error)

	url, ok := env.Data.Primary.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "file://"))

	require.Len(t, env.Paths, 1)
	data, err := os.ReadFile(env.Paths[0])
	require.NoError(t, err)
	assert.Equal(t, "# doc", string(data))
}

func TestUploaderWithBaseURL(t *testing.T) {
	dir := t.TempDir()
	r := tools.NewRegistry()
	require.NoError(t, RegisterAll(r, Config{
		WorkDir:      dir,
		StoreBaseURL: "https://cdn.example.com/objects/",
	}))

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	env := r.Invoke(context.Background(), "uploader", map[string]any{"file_path": src})
	require.False(t, env.IsError(), env.Error)
	url := env.Data.Primary.(string)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/objects/"))
	assert.True(t, strings.HasSuffix(url, "_a.txt"))
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestImageLoaderDecodesImages(t *testing.T) {
	r, dir := newBuiltinRegistry(t)
	writeTestPNG(t, filepath.Join(dir, "in.png"))

	env := r.Invoke(context.Background(), "image_loader", map[string]any{"file_path": "in.png"})
	require.False(t, env.IsError(), env.Error)

	images, ok := env.Data.Primary.([]any)
	require.True(t, ok)
	require.Len(t, images, 1)
	_, isImage := images[0].(image.Image)
	assert.True(t, isImage, "primary should hold decoded in-memory images")
}

func TestImageRotatorSwapsDimensions(t *testing.T) {
	r, dir := newBuiltinRegistry(t)
	writeTestPNG(t, filepath.Join(dir, "in.png"))

	env := r.Invoke(context.Background(), "image_rotator", map[string]any{
		"image_path": "in.png",
		"degrees":    90,
	})
	require.False(t, env.IsError(), env.Error)
	require.Len(t, env.Paths, 1)

	f, err := os.Open(env.Paths[0])
	require.NoError(t, err)
	defer f.Close()
	rotated, err := png.Decode(f)
	require.NoError(t, err)

	// 4x2 rotates to 2x4.
	assert.Equal(t, 2, rotated.Bounds().Dx())
	assert.Equal(t, 4, rotated.Bounds().Dy())
}

func TestImageRotatorRejectsOddAngles(t *testing.T) {
	r, dir := newBuiltinRegistry(t)
	writeTestPNG(t, filepath.Join(dir, "in.png"))

	env := r.Invoke(context.Background(), "image_rotator", map[string]any{
		"image_path": "in.png",
		"degrees":    45,
	})
	assert.True(t, env.IsError())
}
