package report

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/utils"
)

// Artifact is an exported report on disk, ready to be shared.
type Artifact struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Exporter converts a Document into a file. Failures are ScanErrors of kind KindRender.
type Exporter interface {
	Export(ctx context.Context, doc Document, name string) (Artifact, error)
}

// Format names an Exporter.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// NewExporter returns the exporter for format writing into dir.
func NewExporter(format Format, dir string, logger logging.Logger) (Exporter, error) {
	switch format {
	case FormatHTML, "":
		return NewHTMLExporter(dir, logger)
	case FormatPDF:
		return NewPDFExporter(dir, logger)
	default:
		return nil, model.NewScanError(model.KindRender, "unknown report format "+string(format), nil)
	}
}

func writeArtifact(dir, name, ext, contentType string, data []byte) (Artifact, error) {
	path := filepath.Join(dir, utils.SanitizeFileName(name)+ext)
	if err := utils.AtomicWriteFile(path, data, 0644); err != nil {
		return Artifact{}, model.NewScanError(model.KindRender, "failed to write report", err)
	}
	return Artifact{Path: path, ContentType: contentType, Size: int64(len(data))}, nil
}

// HTMLExporter writes Document.HTML to dir.
type HTMLExporter struct {
	dir    string
	logger logging.Logger
}

func NewHTMLExporter(dir string, logger logging.Logger) (*HTMLExporter, error) {
	if logger == nil {
		return nil, errors.New("report: nil logger provided")
	}
	return &HTMLExporter{dir: dir, logger: logger.With(logging.Field{Key: "component", Value: "report.html"})}, nil
}

func (e *HTMLExporter) Export(ctx context.Context, doc Document, name string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, model.NewScanError(model.KindRender, "export cancelled", err)
	}
	html, err := doc.HTML()
	if err != nil {
		return Artifact{}, err
	}
	art, err := writeArtifact(e.dir, name, ".html", "text/html; charset=utf-8", html)
	if err != nil {
		e.logger.Warn("html export failed", logging.Err(err))
		return Artifact{}, err
	}
	e.logger.Info("exported report", logging.Field{Key: "path", Value: art.Path})
	return art, nil
}

// PDFExporter prints Document.HTML to PDF in a headless Chrome.
type PDFExporter struct {
	dir     string
	logger  logging.Logger
	timeout time.Duration
	opts    []chromedp.ExecAllocatorOption
}

// NewPDFExporter creates a PDFExporter. Extra allocator options are appended
// to chromedp's defaults.
func NewPDFExporter(dir string, logger logging.Logger, opts ...chromedp.ExecAllocatorOption) (*PDFExporter, error) {
	if logger == nil {
		return nil, errors.New("report: nil logger provided")
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], opts...)
	return &PDFExporter{
		dir:     dir,
		logger:  logger.With(logging.Field{Key: "component", Value: "report.pdf"}),
		timeout: 30 * time.Second,
		opts:    allocOpts,
	}, nil
}

func (e *PDFExporter) Export(ctx context.Context, doc Document, name string) (Artifact, error) {
	html, err := doc.HTML()
	if err != nil {
		return Artifact{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, e.opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var pdf []byte
	err = chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		e.logger.Warn("pdf export failed", logging.Err(err))
		return Artifact{}, model.NewScanError(model.KindRender, "failed to print report", err)
	}

	art, err := writeArtifact(e.dir, name, ".pdf", "application/pdf", pdf)
	if err != nil {
		return Artifact{}, err
	}
	e.logger.Info("exported report", logging.Field{Key: "path", Value: art.Path}, logging.Field{Key: "bytes", Value: art.Size})
	return art, nil
}

// ArtifactName is the file stem used for an exported history entry.
func ArtifactName(entry model.HistoryEntry) string {
	return "medtriage-report-" + entry.PatientName + "-" + entry.ID
}
