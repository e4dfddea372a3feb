package builtin

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/envelope"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/tools"

	// Standard decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
)

// registerImageLoader registers the image loader. It decodes PNG, JPEG,
// GIF and BMP files and returns the decoded images in memory; a
// downstream consumer that wants paths triggers adapter materialization.
func registerImageLoader(r *tools.Registry, cfg Config) error {
	return r.Register(&tools.Descriptor{
		Name:        "image_loader",
		Version:     "1.0.0",
		Description: "Loads images from disk into memory",
		Category:    tools.CategoryDataSource,
		Inputs: map[string]tools.SemanticType{
			"file_path": tools.SemFilePath,
		},
		Outputs: []string{"data.primary", "data.counts"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			paths := pathList(params["file_path"])
			if len(paths) == 0 {
				return nil, fmt.Errorf("image_loader: no file_path given")
			}

			images := make([]any, 0, len(paths))
			for _, raw := range paths {
				path, err := resolvePath(cfg.WorkDir, raw)
				if err != nil {
					return nil, fmt.Errorf("image_loader: %w", err)
				}
				img, err := decodeImage(path)
				if err != nil {
					return nil, fmt.Errorf("image_loader: %s: %w", path, err)
				}
				images = append(images, img)
			}

			return envelope.New("image_loader", "1.0.0", params, started).
				WithPrimary(images).
				WithCount("primary", float64(len(images))).
				WithMessage(fmt.Sprintf("loaded %d image(s)", len(images))), nil
		},
	})
}

// registerImageRotator registers the image rotator. It rotates by 90
// degree multiples, writes the rotated images next to their sources and
// returns the new paths.
func registerImageRotator(r *tools.Registry, cfg Config) error {
	return r.Register(&tools.Descriptor{
		Name:        "image_rotator",
		Version:     "1.0.0",
		Description: "Rotates images by 90 degree multiples",
		Category:    tools.CategoryDataProcessor,
		Inputs: map[string]tools.SemanticType{
			"image_path": tools.SemFilePath,
			"degrees":    tools.SemNumber,
		},
		Outputs: []string{"data.primary", "paths"},
		Invoke: func(_ context.Context, params map[string]any) (*envelope.Envelope, error) {
			started := time.Now()

			paths := pathList(params["image_path"])
			if len(paths) == 0 {
				return nil, fmt.Errorf("image_rotator: no image_path given")
			}
			degrees := intParam(params["degrees"], 90)
			if degrees%90 != 0 {
				return nil, fmt.Errorf("image_rotator: degrees must be a multiple of 90, got %d", degrees)
			}

			var rotatedPaths []string
			for _, raw := range paths {
				path, err := resolvePath(cfg.WorkDir, raw)
				if err != nil {
					return nil, fmt.Errorf("image_rotator: %w", err)
				}
				img, err := decodeImage(path)
				if err != nil {
					return nil, fmt.Errorf("image_rotator: %s: %w", path, err)
				}
				out := rotatedName(path)
				if err := writePNG(out, rotate(img, degrees)); err != nil {
					return nil, fmt.Errorf("image_rotator: %w", err)
				}
				rotatedPaths = append(rotatedPaths, out)
			}

			primary := make([]any, len(rotatedPaths))
			for i, p := range rotatedPaths {
				primary[i] = p
			}
			return envelope.New("image_rotator", "1.0.0", params, started).
				WithPrimary(primary).
				WithPaths(rotatedPaths...).
				WithCount("rotated", float64(len(rotatedPaths))).
				WithMessage(fmt.Sprintf("rotated %d image(s) by %d degrees", len(rotatedPaths), degrees)), nil
		},
	})
}

// decodeImage opens and decodes one image file. BMP is handled explicitly;
// everything else goes through the registered stdlib decoders.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		return bmp.Decode(f)
	}
	img, _, err := image.Decode(f)
	return img, err
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func rotatedName(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_rotated.png"
}

// rotate turns an image clockwise by a multiple of 90 degrees.
func rotate(img image.Image, degrees int) image.Image {
	turns := ((degrees/90)%4 + 4) % 4
	for i := 0; i < turns; i++ {
		img = rotate90(img)
	}
	return img
}

func rotate90(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(h-1-y, x, src.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return dst
}
