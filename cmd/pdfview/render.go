package main

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wudi/pdfviewer/viewer"
)

var (
	renderPage  int
	renderWidth int
	renderOut   string
	renderAll   bool
)

var errTerminal = errors.New("refusing to write PNG data to a terminal; use --out")

var renderCmd = &cobra.Command{
	Use:   "render <url>",
	Short: "Render pages to PNG",
	Long: `Render one page, or with --all every page, the way the viewer shows it:
scaled to --width pixels (default: viewer.width from the config).

A single page is written to --out, or to stdout when --out is "-". With
--all, --out names a directory that receives page-001.png, page-002.png...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		width := renderWidth
		if width <= 0 {
			width = cfg.Viewer.Width
		}
		vcfg := cfg.ViewerOptions(logger)
		c := viewer.NewHeadless(width, viewer.Rect{})
		v, err := viewer.New(c, newLoader(cfg, logger, true), vcfg)
		if err != nil {
			return err
		}
		defer v.Close()

		if err := v.Load(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !renderAll {
			if renderPage < 1 || renderPage > v.TotalPages() {
				return fmt.Errorf("page %d out of range 1-%d", renderPage, v.TotalPages())
			}
			surface, err := show(v, c, renderPage)
			if err != nil {
				return err
			}
			return writePNG(cmd.OutOrStdout(), renderOut, surface)
		}

		if renderOut == "" || renderOut == "-" {
			return fmt.Errorf("--all needs an output directory")
		}
		if err := os.MkdirAll(renderOut, 0o755); err != nil {
			return err
		}
		total := v.TotalPages()
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Rendering"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionClearOnFinish(),
		)
		for n := 1; n <= total; n++ {
			surface, err := show(v, c, n)
			if err != nil {
				return err
			}
			if err := writePNG(nil, filepath.Join(renderOut, pageFile(n)), surface); err != nil {
				return err
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		return nil
	},
}

// show navigates to page n and waits for its surface. The first page is
// already rendering after a load.
func show(v *viewer.Viewer, c *viewer.Headless, n int) (*image.RGBA, error) {
	before := v.Stats().Failed
	if n != v.CurrentPage() {
		v.GoTo(n)
	}
	v.Wait()
	if v.Stats().Failed != before {
		return nil, fmt.Errorf("page %d could not be rendered", n)
	}
	page, surface := c.Frame()
	if page != n || surface == nil {
		return nil, fmt.Errorf("page %d could not be rendered", n)
	}
	return surface, nil
}

func pageFile(n int) string { return fmt.Sprintf("page-%03d.png", n) }

// writePNG writes img to path, or to stdout for "" and "-" unless stdout
// is a terminal.
func writePNG(stdout io.Writer, path string, img image.Image) error {
	if path == "" || path == "-" {
		if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return errTerminal
		}
		return png.Encode(stdout, img)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	renderCmd.Flags().IntVarP(&renderPage, "page", "p", 1, "page to render")
	renderCmd.Flags().IntVarP(&renderWidth, "width", "w", 0, "surface width in pixels")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "-", "output file, or directory with --all")
	renderCmd.Flags().BoolVar(&renderAll, "all", false, "render every page")
	rootCmd.AddCommand(renderCmd)
}
