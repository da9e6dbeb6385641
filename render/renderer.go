package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"market-surplus/utils"
)

// Renderer rasterises SVG charts to PNG through headless Chrome.
type Renderer struct {
	chromeBin string
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

// NewRenderer creates a Renderer. An empty chromeBin means search the usual
// install locations.
func NewRenderer(chromeBin string, maxRetries int, logger *utils.Logger) *Renderer {
	return &Renderer{
		chromeBin: chromeBin,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
	}
}

// PNG loads svg into a headless page and writes a screenshot of it to path.
func (r *Renderer) PNG(ctx context.Context, svg []byte, path string) error {
	chromeBin := findChromeBinary(r.chromeBin)
	if chromeBin == "" {
		return fmt.Errorf("render: no Chrome/Chromium binary found, set CHROME_BIN")
	}
	r.logger.Debug("[render] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.ExecPath(chromeBin),
		chromedp.WindowSize(chartWidth, chartHeight),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	page := "data:text/html;base64," + base64.StdEncoding.EncodeToString(htmlPage(svg))

	var png []byte
	err := r.retry.Do(browserCtx, "render-png", func(ctx context.Context) error {
		tabCtx, cancelTab := chromedp.NewContext(ctx)
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 30*time.Second)
		defer cancelTimeout()

		return chromedp.Run(tabCtx,
			chromedp.EmulateViewport(chartWidth, chartHeight),
			chromedp.Navigate(page),
			chromedp.WaitVisible("svg", chromedp.ByQuery),
			chromedp.Screenshot("svg", &png, chromedp.ByQuery),
		)
	})
	if err != nil {
		return fmt.Errorf("render: screenshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("render: create output dir: %w", err)
	}
	if err := os.WriteFile(path, png, 0644); err != nil {
		return fmt.Errorf("render: write %q: %w", path, err)
	}

	r.logger.Info("[render] Chart saved to %s (%d bytes)", path, len(png))
	return nil
}

// WriteSVG saves svg to path, creating parent directories.
func WriteSVG(svg []byte, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("render: create output dir: %w", err)
	}
	if err := os.WriteFile(path, svg, 0644); err != nil {
		return fmt.Errorf("render: write %q: %w", path, err)
	}
	return nil
}

func htmlPage(svg []byte) []byte {
	return []byte(`<!DOCTYPE html><html><head><meta charset="utf-8">` +
		`<style>html,body{margin:0;padding:0;background:#fff}</style></head><body>` +
		string(svg) + `</body></html>`)
}

// findChromeBinary locates Chrome/Chromium, preferring the configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
