// Command pdf-annotate applies page deletions, rotation and overlay
// annotations to a PDF document and writes the edited copy.
//
// Usage:
//
//	pdf-annotate -in doc.pdf -overlay 2=notes.json -delete 3 -rotate 90 -out edited.pdf
//	pdf-annotate -in doc.pdf -extract 2 -out page2.pdf
//	pdf-annotate -merge a.pdf,b.pdf -out merged.pdf
//
// Overlay files hold the editor's JSON document as captured at zoom 1.0.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/pyhub-apps/pdfannotate/pkg/config"
	"github.com/pyhub-apps/pdfannotate/pkg/export"
	"github.com/pyhub-apps/pdfannotate/pkg/ocr"
	"github.com/pyhub-apps/pdfannotate/pkg/overlay"
	"github.com/pyhub-apps/pdfannotate/pkg/render"
	"github.com/pyhub-apps/pdfannotate/pkg/session"
)

type options struct {
	in       string
	out      string
	config   string
	deletes  []int
	rotate   int
	overlays overlayFlag
	ocr      []int
	extract  int
	merge    []string
}

// overlayFlag collects repeated -overlay page=file arguments
type overlayFlag map[int]string

func (f overlayFlag) String() string {
	parts := make([]string, 0, len(f))
	for _, p := range sortedKeys(f) {
		parts = append(parts, fmt.Sprintf("%d=%s", p, f[p]))
	}
	return strings.Join(parts, ",")
}

func (f overlayFlag) Set(v string) error {
	page, path, ok := strings.Cut(v, "=")
	if !ok || path == "" {
		return fmt.Errorf("expected page=file, got %q", v)
	}
	n, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil || n < 1 {
		return fmt.Errorf("invalid page %q", page)
	}
	f[n] = path
	return nil
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdf-annotate: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdf-annotate: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	opts := options{overlays: overlayFlag{}}
	var deletes, ocrPages, merge string

	flag.StringVar(&opts.in, "in", "", "input PDF file")
	flag.StringVar(&opts.out, "out", "", "output file (defaults to the configured export filename)")
	flag.StringVar(&opts.config, "config", config.GetEnv("PDFANNOTATE_CONFIG", ""), "YAML config file")
	flag.StringVar(&deletes, "delete", "", "comma separated pages to delete")
	flag.IntVar(&opts.rotate, "rotate", 0, "clockwise rotation in degrees, a multiple of 90")
	flag.Var(opts.overlays, "overlay", "page=file overlay JSON (repeatable)")
	flag.StringVar(&ocrPages, "ocr", "", "comma separated pages to recognize text on")
	flag.IntVar(&opts.extract, "extract", 0, "extract a single page instead of exporting")
	flag.StringVar(&merge, "merge", "", "comma separated PDF files to merge")
	flag.Parse()

	var err error
	if opts.deletes, err = parsePages(deletes); err != nil {
		return opts, fmt.Errorf("-delete: %w", err)
	}
	if opts.ocr, err = parsePages(ocrPages); err != nil {
		return opts, fmt.Errorf("-ocr: %w", err)
	}
	if opts.rotate%90 != 0 {
		return opts, fmt.Errorf("-rotate must be a multiple of 90, got %d", opts.rotate)
	}
	if merge != "" {
		for _, p := range strings.Split(merge, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.merge = append(opts.merge, p)
			}
		}
		return opts, nil
	}
	if opts.in == "" {
		flag.Usage()
		return opts, errors.New("-in is required")
	}
	return opts, nil
}

func parsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pages []int
	for _, f := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page %q", f)
		}
		pages = append(pages, n)
	}
	return pages, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	if len(opts.merge) > 0 {
		return runMerge(ctx, cfg, logger, opts)
	}

	data, err := os.ReadFile(opts.in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	sessOpts := []session.Option{session.WithConfig(cfg), session.WithLogger(logger)}
	if len(opts.ocr) > 0 {
		engine := newEngine()
		if engine == nil {
			return errors.New("-ocr requires a build with the tesseract tag")
		}
		sessOpts = append(sessOpts, session.WithRecognizer(ocr.NewRecognizer(engine,
			ocr.WithLanguages(cfg.OCR.Languages...),
			ocr.WithScale(cfg.OCR.Scale),
			ocr.WithThreshold(cfg.OCR.Threshold),
			ocr.WithMinConfidence(cfg.OCR.MinConfidence),
			ocr.WithPageSegMode(cfg.OCR.PageSegMode),
		)))
	}

	editor := overlay.NewMemoryEditor()
	sess := session.New(editor, render.NewPreviewRasterizer(), sessOpts...)
	defer sess.Close()

	if err := sess.Load(ctx, data); err != nil {
		return err
	}

	if opts.extract > 0 {
		if err := sess.GoTo(opts.extract); err != nil {
			return err
		}
		res, err := sess.ExtractCurrentPage(ctx)
		if err != nil {
			return err
		}
		return write(opts.out, res)
	}

	if err := annotate(ctx, sess, editor, opts); err != nil {
		return err
	}

	res, err := sess.Export(ctx)
	if err != nil {
		return err
	}
	if err := write(opts.out, res); err != nil {
		return err
	}

	fmt.Printf("Pages: %d of %d kept\n", sess.VisiblePageCount(), sess.PageCount())
	fmt.Printf("Rotation: %d\n", sess.Rotation())
	return nil
}

// annotate replays the requested edits in the order a user would make them:
// overlays and recognition first, then deletions, then rotation.
func annotate(ctx context.Context, sess *session.Session, editor *overlay.MemoryEditor, opts options) error {
	for _, page := range sortedKeys(opts.overlays) {
		raw, err := os.ReadFile(opts.overlays[page])
		if err != nil {
			return fmt.Errorf("failed to read overlay for page %d: %w", page, err)
		}
		if err := sess.GoTo(page); err != nil {
			return err
		}
		if err := editor.Load(raw); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
	}

	for _, page := range opts.ocr {
		if err := sess.GoTo(page); err != nil {
			return err
		}
		words, err := sess.RecognizeText(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Page %d: %d words recognized\n", page, len(words))
	}

	seen := make(map[int]bool)
	for _, page := range opts.deletes {
		if seen[page] {
			continue
		}
		seen[page] = true
		if err := sess.GoTo(page); err != nil {
			return err
		}
		if err := sess.DeleteCurrentPage(); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
	}

	for i := 0; i < ((opts.rotate/90)%4+4)%4; i++ {
		if _, err := sess.Rotate(); err != nil {
			return err
		}
	}

	return sess.Persist()
}

func runMerge(ctx context.Context, cfg config.Config, logger *slog.Logger, opts options) error {
	docs := make([][]byte, 0, len(opts.merge))
	for _, p := range opts.merge {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, data)
	}

	c := export.NewCompositor(
		export.WithFilenames(cfg.Export.Filename, cfg.Export.ExtractFilename, cfg.Export.MergeFilename),
		export.WithLogger(logger),
	)
	res, err := c.Merge(ctx, docs)
	if err != nil {
		return err
	}
	return write(opts.out, res)
}

func write(out string, res export.Result) error {
	if out == "" {
		out = res.Filename
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", out, len(res.Data))
	return nil
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
