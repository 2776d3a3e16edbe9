package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jjenkins/bobbot/internal/model"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// FailureKind classifies why a document was not converted.
type FailureKind string

const (
	FailureDownload    FailureKind = "download"
	FailureUnsupported FailureKind = "unsupported"
	FailureUnavailable FailureKind = "unavailable"
	FailureConversion  FailureKind = "conversion"
	FailureStore       FailureKind = "store"
)

// ConversionFailure describes one document the pipeline gave up on.
type ConversionFailure struct {
	ID     int
	Title  string
	Kind   FailureKind
	Reason string
}

func (f ConversionFailure) Error() string {
	return fmt.Sprintf("regulation %d %q: %s: %s", f.ID, f.Title, f.Kind, f.Reason)
}

// ConversionResult summarizes a pipeline run.
type ConversionResult struct {
	Total     int
	Converted int
	Skipped   int
	Failed    int
	Failures  []ConversionFailure
}

// Err joins every recorded failure, or returns nil.
func (r *ConversionResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// ConversionStore is the storage the pipeline reads from and writes to.
type ConversionStore interface {
	ListPendingConversion(ctx context.Context, maxAttempts int) ([]model.Regulation, error)
	SetHTMLURL(ctx context.Context, id int, htmlURL string, now time.Time) error
	RecordConversionFailure(ctx context.Context, id int, reason string) error
}

// Downloader fetches a source document.
type Downloader interface {
	Download(ctx context.Context, ref string, w io.Writer) error
}

// ConversionOptions configures a ConversionPipeline.
type ConversionOptions struct {
	DownloadDir   string
	HTMLDir       string
	KeepOriginals bool
	Timeout       time.Duration
	MaxAttempts   int
}

// ConversionPipeline converts stored regulations that lack an HTML artifact.
type ConversionPipeline struct {
	store      ConversionStore
	downloader Downloader
	converters map[string]Converter
	opts       ConversionOptions
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewConversionPipeline creates a pipeline dispatching by file extension.
func NewConversionPipeline(store ConversionStore, downloader Downloader, converters []Converter, opts ConversionOptions, metrics *Metrics, logger *zap.Logger) *ConversionPipeline {
	byExt := make(map[string]Converter, len(converters))
	for _, c := range converters {
		byExt[c.Extension()] = c
	}
	return &ConversionPipeline{
		store:      store,
		downloader: downloader,
		converters: byExt,
		opts:       opts,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Run converts every pending regulation. Per-document problems are
// collected in the result; only setup and listing errors are returned.
func (p *ConversionPipeline) Run(ctx context.Context) (*ConversionResult, error) {
	for _, dir := range []string{p.opts.DownloadDir, p.opts.HTMLDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	items, err := p.store.ListPendingConversion(ctx, p.opts.MaxAttempts)
	if err != nil {
		return nil, err
	}

	result := &ConversionResult{Total: len(items)}
	if len(items) == 0 {
		p.logger.Info("No documents pending conversion")
		return result, nil
	}

	available := make(map[string]bool, len(p.converters))
	for ext, c := range p.converters {
		available[ext] = c.Available(ctx)
		p.logger.Info("Converter probed", zap.String("extension", ext), zap.Bool("available", available[ext]))
	}

	for idx, reg := range items {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		p.logger.Info("Converting document",
			zap.String("progress", fmt.Sprintf("%d/%d", idx+1, len(items))),
			zap.Int("regulation_id", reg.ID),
			zap.String("title", reg.Title),
		)

		failure := p.convertOne(ctx, reg, available)
		switch {
		case failure == nil:
			result.Converted++
			p.metrics.Conversions.WithLabelValues("converted").Inc()
		case failure.Kind == FailureUnavailable:
			result.Skipped++
			result.Failures = append(result.Failures, *failure)
			p.metrics.Conversions.WithLabelValues("skipped").Inc()
			p.logger.Warn("Document skipped", zap.Int("regulation_id", reg.ID), zap.String("reason", failure.Reason))
		default:
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Failures = append(result.Failures, *failure)
			p.metrics.Conversions.WithLabelValues("failed").Inc()
			p.logger.Warn("Document conversion failed",
				zap.Int("regulation_id", reg.ID),
				zap.String("kind", string(failure.Kind)),
				zap.String("reason", failure.Reason),
			)
			if failure.Kind != FailureStore {
				if err := p.store.RecordConversionFailure(ctx, reg.ID, string(failure.Kind)+": "+failure.Reason); err != nil {
					p.logger.Error("Failed to record conversion failure", zap.Int("regulation_id", reg.ID), zap.Error(err))
				}
			}
		}
	}

	return result, nil
}

func (p *ConversionPipeline) convertOne(ctx context.Context, reg model.Regulation, available map[string]bool) *ConversionFailure {
	fail := func(kind FailureKind, format string, args ...any) *ConversionFailure {
		return &ConversionFailure{ID: reg.ID, Title: reg.Title, Kind: kind, Reason: fmt.Sprintf(format, args...)}
	}

	name, ext := DocumentName(reg)
	conv, ok := p.converters[ext]
	if !ok {
		return fail(FailureUnsupported, "no converter for .%s files", ext)
	}
	if !available[ext] {
		return fail(FailureUnavailable, "%s converter is not available", ext)
	}

	itemCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	staged := filepath.Join(p.opts.DownloadDir, name+"."+ext)
	if err := p.download(itemCtx, reg.FileURL.String, staged); err != nil {
		return fail(FailureDownload, "%v", err)
	}

	outDir := filepath.Join(p.opts.HTMLDir, name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.discard(staged)
		return fail(FailureConversion, "failed to create output dir: %v", err)
	}

	entry, err := conv.Convert(itemCtx, staged, outDir)
	if err != nil {
		os.RemoveAll(outDir)
		p.discard(staged)
		return fail(FailureConversion, "%v", err)
	}

	rel, err := filepath.Rel(p.opts.HTMLDir, entry)
	if err != nil {
		p.discard(staged)
		return fail(FailureConversion, "artifact outside html dir: %v", err)
	}

	// The original stays on disk when the artifact could not be recorded.
	if err := p.store.SetHTMLURL(ctx, reg.ID, filepath.ToSlash(rel), p.now()); err != nil {
		return fail(FailureStore, "%v", err)
	}

	p.discard(staged)
	return nil
}

// download writes ref to a temporary file and moves it into place once
// complete.
func (p *ConversionPipeline) download(ctx context.Context, ref, dest string) error {
	tmp := filepath.Join(p.opts.DownloadDir, "."+uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	err = p.downloader.Download(ctx, ref, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to stage download: %w", err)
	}
	return nil
}

func (p *ConversionPipeline) discard(path string) {
	if p.opts.KeepOriginals {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("Failed to remove downloaded original", zap.String("path", path), zap.Error(err))
	}
}

var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// DocumentName returns the on-disk base name `[type]title_YYYY-MM-DD` of a
// regulation and the extension of its source file. The extension comes
// from the file_name_origin query parameter and defaults to "bin".
func DocumentName(reg model.Regulation) (name, ext string) {
	title := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, norm.NFC.String(reg.Title))
	title = unsafeFilenameChars.Replace(title)

	name = title + "_" + reg.CreateDate.Format("2006-01-02")
	if reg.Type.Valid && reg.Type.String != "" {
		name = "[" + reg.Type.String + "]" + name
	}
	return name, sourceExtension(reg.FileURL.String)
}

func sourceExtension(fileURL string) string {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "bin"
	}
	origin := u.Query().Get("file_name_origin")
	dot := strings.LastIndex(origin, ".")
	if dot < 0 || dot == len(origin)-1 {
		return "bin"
	}
	return strings.ToLower(origin[dot+1:])
}
