package adapt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/cachestore"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// keyAcceptScore is the minimum key similarity for an alias match.
const keyAcceptScore = 0.3

// fallbackSourceKeys are tried in order when no key matches at all: these
// conventional containers map onto whatever key the consumer asked for.
var fallbackSourceKeys = []string{"data", "primary", "results", "items"}

// Compatibility describes how well a producer's output covers a consumer's
// requested keys.
type Compatibility struct {
	SourceKeys  []string
	MissingKeys []string
	HasImages   bool
	Confidence  float64
}

// Stats is a snapshot of adapter counters.
type Stats struct {
	Attempts           int64
	Successes          int64
	Failures           int64
	CacheHits          int64
	ImagesMaterialized int64
}

// OutputAdapter repairs envelope key mismatches between producers and
// consumers. Resolved values are cached by input hash with an LRU bound.
type OutputAdapter struct {
	tables *config.Tables
	cache  cachestore.Store
	tmpDir string

	mu           sync.RWMutex
	transformers map[string]TransformFunc
	disabled     map[string]bool

	attempts           atomic.Int64
	successes          atomic.Int64
	failures           atomic.Int64
	cacheHits          atomic.Int64
	imagesMaterialized atomic.Int64
}

// OutputOption configures an OutputAdapter.
type OutputOption func(*OutputAdapter)

// WithCache sets the adapter result cache. Default is an in-process LRU.
func WithCache(cache cachestore.Store) OutputOption {
	return func(o *OutputAdapter) {
		o.cache = cache
	}
}

// WithImageDir sets the directory for materialized images. Default is the
// OS temp directory.
func WithImageDir(dir string) OutputOption {
	return func(o *OutputAdapter) {
		o.tmpDir = dir
	}
}

// NewOutputAdapter creates an output adapter. Transformers absent from the
// tables' enabled list start disabled.
func NewOutputAdapter(tables *config.Tables, opts ...OutputOption) *OutputAdapter {
	o := &OutputAdapter{
		tables:       tables,
		cache:        cachestore.NewMemoryStore(),
		tmpDir:       os.TempDir(),
		transformers: make(map[string]TransformFunc, len(catalogue)),
		disabled:     make(map[string]bool),
	}
	for name, fn := range catalogue {
		o.transformers[name] = fn
		if !tables.TransformerEnabled(name) {
			o.disabled[name] = true
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnableTransformer activates a catalogue entry.
func (o *OutputAdapter) EnableTransformer(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.disabled, name)
}

// DisableTransformer deactivates a catalogue entry.
func (o *OutputAdapter) DisableTransformer(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disabled[name] = true
}

// RemoveTransformer deletes a catalogue entry from this adapter. Unlike
// DisableTransformer, a removed entry cannot be re-enabled.
func (o *OutputAdapter) RemoveTransformer(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.transformers, name)
	delete(o.disabled, name)
}

// ApplyTransformer runs one catalogue coercion. Disabled, removed or
// unknown names fail.
func (o *OutputAdapter) ApplyTransformer(name string, v any) (any, error) {
	o.mu.RLock()
	disabled := o.disabled[name]
	fn, ok := o.transformers[name]
	o.mu.RUnlock()
	if disabled {
		return nil, fmt.Errorf("transformer %s is disabled", name)
	}
	if !ok {
		return nil, fmt.Errorf("unknown transformer %s", name)
	}
	return fn(v)
}

// Stats returns a snapshot of the adapter counters.
func (o *OutputAdapter) Stats() Stats {
	return Stats{
		Attempts:           o.attempts.Load(),
		Successes:          o.successes.Load(),
		Failures:           o.failures.Load(),
		CacheHits:          o.cacheHits.Load(),
		ImagesMaterialized: o.imagesMaterialized.Load(),
	}
}

// Analyze describes how a producer's output covers the requested keys.
func (o *OutputAdapter) Analyze(source *types.NodeOutput, requestedKeys []string) *Compatibility {
	comp := &Compatibility{}
	available := availableKeys(source.Value)
	comp.SourceKeys = available
	comp.HasImages = containsImages(source.Value)

	matched := 0
	for _, key := range requestedKeys {
		if _, score := bestKeyMatch(key, available); score >= keyAcceptScore {
			matched++
		} else {
			comp.MissingKeys = append(comp.MissingKeys, key)
		}
	}
	if len(requestedKeys) > 0 {
		comp.Confidence = float64(matched) / float64(len(requestedKeys))
	} else {
		comp.Confidence = 1.0
	}
	return comp
}

// AdaptKey produces a value for a key the producer's envelope did not
// supply directly. It tries the result cache, key aliasing, structural
// rules (image materialization, cardinality packing) and conventional
// container fallbacks. A false return means the mismatch is unrecoverable
// here.
func (o *OutputAdapter) AdaptKey(source *types.NodeOutput, key string) (any, bool) {
	o.attempts.Add(1)

	cacheKey, cacheable := o.resultCacheKey(source, key)
	if cacheable {
		if data, err := o.cache.Get(context.Background(), cacheKey); err == nil {
			var cached any
			if err := json.Unmarshal(data, &cached); err == nil {
				o.cacheHits.Add(1)
				return cached, true
			}
		}
	}

	value, ok := o.adapt(source, key)
	if !ok {
		o.failures.Add(1)
		return nil, false
	}
	o.successes.Add(1)

	if cacheable {
		if data, err := json.Marshal(value); err == nil {
			_ = o.cache.Set(context.Background(), cacheKey, data)
		}
	}
	return value, true
}

func (o *OutputAdapter) adapt(source *types.NodeOutput, key string) (any, bool) {
	m, ok := source.Value.(map[string]any)
	if !ok {
		// A bare value can still satisfy an image-to-path request.
		if v, ok := o.structural(source.Value, key); ok {
			return v, true
		}
		return nil, false
	}

	candidates := flattenCandidates(m)

	if matched, score := bestMatchIn(key, candidates); score >= keyAcceptScore {
		value := candidates[matched]
		logger.Adaptation("output", key, matched, key,
			"node", source.NodeID, "score", score)
		if v, ok := o.structural(value, key); ok {
			return v, true
		}
		return value, true
	}

	// Conventional container fallback: data/primary/results/items map onto
	// whatever key was requested.
	for _, fallback := range fallbackSourceKeys {
		if value, exists := candidates[fallback]; exists {
			logger.Adaptation("output", key, fallback, key, "node", source.NodeID)
			if v, ok := o.structural(value, key); ok {
				return v, true
			}
			return value, true
		}
	}

	// No key matched, but a path-like request can still be satisfied by
	// materializing whatever images the output holds.
	if containsImages(m) && keyWantsPaths(key) {
		if v, ok := o.structural(m, key); ok {
			return v, true
		}
	}
	return nil, false
}

// structural applies the cardinality and image rules to a matched value.
// The boolean reports whether a rewrite happened.
func (o *OutputAdapter) structural(value any, key string) (any, bool) {
	if containsImages(value) && keyWantsPaths(key) {
		paths, err := o.materializeImages(value)
		if err != nil {
			logger.Warn("Failed to materialize images", "key", key, "error", err)
			return nil, false
		}
		if !pluralKey(key) && len(paths) == 1 {
			return paths[0], true
		}
		out := make([]any, len(paths))
		for i, p := range paths {
			out[i] = p
		}
		return out, true
	}

	if list, ok := value.([]any); ok && len(list) == 1 && !pluralKey(key) {
		return list[0], true
	}
	if _, ok := value.([]any); !ok && pluralKey(key) {
		return []any{value}, true
	}
	return nil, false
}

// materializeImages writes every in-memory image found in the value to a
// PNG under the temp directory and returns the paths.
func (o *OutputAdapter) materializeImages(value any) ([]string, error) {
	paths, err := materializeImagesTo(o.tmpDir, value)
	if err != nil {
		return nil, err
	}
	o.imagesMaterialized.Add(int64(len(paths)))
	return paths, nil
}

// materializeImagesTo writes every image found in the value to PNG files
// under dir. Shared by the output and parameter adapters.
func materializeImagesTo(dir string, value any) ([]string, error) {
	images := collectImages(value)
	if len(images) == 0 {
		return nil, fmt.Errorf("no images in value of type %T", value)
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		f, err := os.CreateTemp(dir, "img_*.png")
		if err != nil {
			return nil, fmt.Errorf("failed to create image file: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, f.Name())
	}
	return paths, nil
}

// resultCacheKey hashes the source value and requested key. Values holding
// in-memory objects are not cacheable.
func (o *OutputAdapter) resultCacheKey(source *types.NodeOutput, key string) (string, bool) {
	data, err := json.Marshal(source.Value)
	if err != nil {
		return "", false
	}
	h := sha256.New()
	h.Write([]byte(source.NodeID))
	h.Write([]byte{0})
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), true
}

// collectImages gathers in-memory images from a value, recursing through
// maps and lists.
func collectImages(value any) []image.Image {
	switch v := value.(type) {
	case image.Image:
		return []image.Image{v}
	case []image.Image:
		return v
	case []any:
		var out []image.Image
		for _, item := range v {
			out = append(out, collectImages(item)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []image.Image
		for _, k := range keys {
			out = append(out, collectImages(v[k])...)
		}
		return out
	default:
		return nil
	}
}

func containsImages(value any) bool {
	return len(collectImages(value)) > 0
}

// flattenCandidates merges top-level keys with the data sub-tree so alias
// matching sees both.
func flattenCandidates(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	if data, ok := m["data"].(map[string]any); ok {
		for k, v := range data {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out
}

func availableKeys(value any) []string {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range flattenCandidates(m) {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bestKeyMatch(key string, available []string) (string, float64) {
	best, bestScore := "", 0.0
	for _, candidate := range available {
		score := keySimilarity(key, candidate)
		if score > bestScore || (score == bestScore && candidate < best) {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore
}

func bestMatchIn(key string, candidates map[string]any) (string, float64) {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return bestKeyMatch(key, keys)
}

// keySimilarity scores exact match above substring containment above
// character-set overlap.
func keySimilarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	return charJaccard(a, b) * 0.6
}

func charJaccard(a, b string) float64 {
	setA := make(map[rune]bool)
	for _, r := range a {
		setA[r] = true
	}
	setB := make(map[rune]bool)
	for _, r := range b {
		setB[r] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for r := range setA {
		if setB[r] {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

func keyWantsPaths(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "path") || strings.Contains(k, "file") ||
		strings.Contains(k, "image")
}

func pluralKey(key string) bool {
	return strings.HasSuffix(key, "s")
}
