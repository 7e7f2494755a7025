package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/cropocr/pkg/camera"
	"github.com/lehigh-university-libraries/cropocr/pkg/crop"
	"github.com/lehigh-university-libraries/cropocr/pkg/hocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/languages"
	"github.com/lehigh-university-libraries/cropocr/pkg/ocr"
	"github.com/lehigh-university-libraries/cropocr/pkg/overlay"
	"github.com/lehigh-university-libraries/cropocr/pkg/session"
	"github.com/lehigh-university-libraries/cropocr/pkg/translate"
)

var (
	cropImage          string
	cropRenderedWidth  float64
	cropRenderedHeight float64
	cropX              float64
	cropY              float64
	cropWidth          float64
	cropHeight         float64
	cropUnit           string
	cropDefault        bool
	cropOutput         string
	cropOCR            bool
	cropOverlay        string
	cropHOCR           string
	cropTranslate      string
	cropCopy           bool
)

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop a region of an image and optionally recognize and translate it",
	Long: `Crop maps a selection made on a scaled preview back to source pixels and
writes exactly those pixels as a PNG.

The selection is given in rendered coordinates (--x, --y, --width, --height)
together with the size the image was rendered at. Without a selection, or with
--default, the centered square offered by the UI is used.`,
	RunE: runCrop,
}

func init() {
	RootCmd.AddCommand(cropCmd)

	cropCmd.Flags().StringVarP(&cropImage, "image", "i", "", "Source image (PNG, JPEG, GIF, BMP, TIFF or WebP)")
	cropCmd.Flags().Float64Var(&cropRenderedWidth, "rendered-width", 0, "Width the image was displayed at (0 = natural width)")
	cropCmd.Flags().Float64Var(&cropRenderedHeight, "rendered-height", 0, "Height the image was displayed at (0 = natural height)")
	cropCmd.Flags().Float64Var(&cropX, "x", 0, "Selection left edge in rendered coordinates")
	cropCmd.Flags().Float64Var(&cropY, "y", 0, "Selection top edge in rendered coordinates")
	cropCmd.Flags().Float64Var(&cropWidth, "width", 0, "Selection width in rendered coordinates")
	cropCmd.Flags().Float64Var(&cropHeight, "height", 0, "Selection height in rendered coordinates")
	cropCmd.Flags().StringVar(&cropUnit, "unit", "px", "Selection unit: px or %")
	cropCmd.Flags().BoolVar(&cropDefault, "default", false, "Use the default centered square selection")
	cropCmd.Flags().StringVarP(&cropOutput, "output", "o", "", "Where to write the cropped PNG (default <image>_crop.png)")
	cropCmd.Flags().BoolVar(&cropOCR, "ocr", false, "Send the crop to the OCR service")
	cropCmd.Flags().StringVar(&cropOverlay, "overlay", "", "Write the crop with recognized boxes outlined to this PNG (implies --ocr)")
	cropCmd.Flags().StringVar(&cropHOCR, "hocr", "", "Write the recognized boxes as hOCR to this file (implies --ocr)")
	cropCmd.Flags().StringVar(&cropTranslate, "translate", "", "Translate the recognized text into this language (implies --ocr)")
	cropCmd.Flags().BoolVar(&cropCopy, "copy", false, "Copy the recognized (or translated) text to the clipboard")

	cropCmd.MarkFlagRequired("image")
}

// cropReport is printed as YAML on stdout.
type cropReport struct {
	Image       string                 `yaml:"image"`
	Output      string                 `yaml:"output"`
	Dimensions  crop.DisplayDimensions `yaml:"dimensions"`
	Selection   crop.Region            `yaml:"selection"`
	Crop        *crop.Buffer           `yaml:"crop"`
	Boxes       []ocr.Box              `yaml:"boxes,omitempty"`
	Text        string                 `yaml:"text,omitempty"`
	TargetLang  string                 `yaml:"target_lang,omitempty"`
	Translation string                 `yaml:"translation,omitempty"`
	Overlay     string                 `yaml:"overlay,omitempty"`
	HOCR        string                 `yaml:"hocr,omitempty"`
}

func runCrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	img, err := crop.Open(cropImage)
	if err != nil {
		return err
	}

	region, err := selectionFromFlags(cmd)
	if err != nil {
		return err
	}

	wantOCR := cropOCR || cropOverlay != "" || cropHOCR != "" || cropTranslate != ""
	s := session.New(ocr.New(cfg.OCR()), translate.New(cfg.Translate()), camera.New(cfg.Camera()),
		session.NotifierFunc(printNotice))

	dims := s.Load(img, cropRenderedWidth, cropRenderedHeight)
	if region != nil {
		if _, err := s.Select(*region); err != nil {
			return err
		}
	}

	report := cropReport{
		Image:      cropImage,
		Output:     cropOutput,
		Dimensions: dims,
		Selection:  s.Snapshot().Selection,
	}
	if report.Output == "" {
		report.Output = defaultCropPath(cropImage)
	}

	if wantOCR {
		out, err := s.Commit(ctx)
		if err != nil {
			return err
		}
		if !out.Produced {
			return fmt.Errorf("selection %+v is empty at %gx%g", report.Selection, dims.RenderedWidth, dims.RenderedHeight)
		}
		report.Crop = out.Buffer
		report.Boxes = out.Result.Drawable()
		report.Text = out.Text
	} else {
		buf, err := crop.Extract(img, dims, report.Selection)
		if err != nil {
			return err
		}
		if buf == nil {
			return fmt.Errorf("selection %+v is empty at %gx%g", report.Selection, dims.RenderedWidth, dims.RenderedHeight)
		}
		report.Crop = buf
	}

	if err := os.WriteFile(report.Output, report.Crop.Data, 0644); err != nil {
		return fmt.Errorf("failed to write crop: %w", err)
	}
	slog.Info("Crop written", "path", report.Output, "width", report.Crop.Width, "height", report.Crop.Height)

	if cropOverlay != "" {
		data, err := overlay.RenderPNG(report.Crop.Data, report.Boxes, cfg.Overlay)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cropOverlay, data, 0644); err != nil {
			return fmt.Errorf("failed to write overlay: %w", err)
		}
		report.Overlay = cropOverlay
	}

	if cropHOCR != "" {
		doc := hocr.FromBoxes(report.Boxes, report.Crop.Width, report.Crop.Height)
		if err := os.WriteFile(cropHOCR, []byte(doc), 0644); err != nil {
			return fmt.Errorf("failed to write hOCR: %w", err)
		}
		report.HOCR = cropHOCR
	}

	if cropTranslate != "" {
		lang, err := languages.Resolve(cropTranslate)
		if err != nil {
			return err
		}
		translation, err := s.Translate(ctx, lang)
		if err != nil {
			return err
		}
		report.TargetLang = lang
		report.Translation = translation
	}

	if cropCopy {
		copied := report.Translation
		if copied == "" {
			copied = report.Text
		}
		if err := clipboard.WriteAll(copied); err != nil {
			slog.Warn("Unable to copy to clipboard", "err", err)
		}
	}

	fmt.Fprintln(cmd.ErrOrStderr(), renderCropSummary(report))
	return yaml.NewEncoder(cmd.OutOrStdout()).Encode(report)
}

// selectionFromFlags returns nil when the default region should be used.
func selectionFromFlags(cmd *cobra.Command) (*crop.Region, error) {
	if cropDefault {
		return nil, nil
	}
	explicit := false
	for _, name := range []string{"x", "y", "width", "height"} {
		if cmd.Flags().Changed(name) {
			explicit = true
		}
	}
	if !explicit {
		return nil, nil
	}

	unit, err := crop.ParseUnit(cropUnit)
	if err != nil {
		return nil, err
	}
	return &crop.Region{X: cropX, Y: cropY, Width: cropWidth, Height: cropHeight, Unit: unit}, nil
}

func defaultCropPath(image string) string {
	ext := filepath.Ext(image)
	return strings.TrimSuffix(image, ext) + "_crop.png"
}
