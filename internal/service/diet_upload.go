package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/bobbot/internal/extract"
	"github.com/jjenkins/bobbot/internal/model"
	"go.uber.org/zap"
)

// ErrValidation marks an upload rejected before anything was written.
var ErrValidation = errors.New("invalid diet upload")

var yymmddPattern = regexp.MustCompile(`^\d{6}$`)

// DietUploadProcessor turns an upload's title and creation date into a
// diet record.
type DietUploadProcessor struct {
	dates     *extract.DateExtractor
	locations *extract.LocationResolver
	imageDir  string
	loc       *time.Location
}

// NewDietUploadProcessor creates a processor that places images under
// imageDir/diet.
func NewDietUploadProcessor(dates *extract.DateExtractor, locations *extract.LocationResolver, imageDir string, loc *time.Location) *DietUploadProcessor {
	if loc == nil {
		loc = time.Local
	}
	return &DietUploadProcessor{dates: dates, locations: locations, imageDir: imageDir, loc: loc}
}

// Process validates the inputs and derives the menu week, the cafeteria
// and the image location. The week comes from the title, or is the Monday
// after the post date when the title has none.
func (p *DietUploadProcessor) Process(title, yymmdd string) (*model.Diet, error) {
	if !yymmddPattern.MatchString(yymmdd) {
		return nil, fmt.Errorf("%w: post_create_date %q is not yymmdd", ErrValidation, yymmdd)
	}
	created, err := time.ParseInLocation("060102", yymmdd, p.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: post_create_date %q is not a date", ErrValidation, yymmdd)
	}

	cafeteria, err := p.locations.ResolveStrict(title)
	if err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrValidation, err, title)
	}

	start, ok := p.dates.WeekStart(title)
	if !ok {
		start = extract.NextMonday(created)
	}

	file := fmt.Sprintf("%s_%s.jpg", start.Format("060102"), cafeteria.Name)
	return &model.Diet{
		PostTitle:      title,
		PostCreateDate: created,
		StartDate:      start,
		CafeteriaID:    cafeteria.ID,
		ImgURL:         path.Join("image", "diet", file),
		ImgPath:        filepath.Join(p.imageDir, "diet", file),
	}, nil
}

// DietWriter persists diet records.
type DietWriter interface {
	Upsert(ctx context.Context, d *model.Diet) error
	ForWeeks(ctx context.Context, cafeteriaID int, thisWeek, nextWeek time.Time) ([]model.Diet, error)
}

// DietService stores uploaded menu images and answers weekly lookups.
type DietService struct {
	processor *DietUploadProcessor
	store     DietWriter
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewDietService creates a new DietService
func NewDietService(processor *DietUploadProcessor, store DietWriter, metrics *Metrics, logger *zap.Logger) *DietService {
	return &DietService{processor: processor, store: store, metrics: metrics, logger: logger, now: time.Now}
}

// Upload validates the upload, writes the image and upserts the record.
func (s *DietService) Upload(ctx context.Context, title, yymmdd string, image io.Reader) (*model.Diet, error) {
	diet, err := s.processor.Process(title, yymmdd)
	if err != nil {
		s.metrics.DietUploads.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if err := writeFileAtomic(diet.ImgPath, image); err != nil {
		s.metrics.DietUploads.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := s.store.Upsert(ctx, diet); err != nil {
		s.metrics.DietUploads.WithLabelValues("failed").Inc()
		return nil, err
	}

	s.metrics.DietUploads.WithLabelValues("stored").Inc()
	s.logger.Info("Diet stored",
		zap.String("title", title),
		zap.Int("cafeteria_id", diet.CafeteriaID),
		zap.Time("start_date", diet.StartDate),
		zap.String("img_path", diet.ImgPath),
	)
	return diet, nil
}

// Weekly returns this week's and next week's menus for a cafeteria. Weeks
// are counted in the processor's location, not the host's.
func (s *DietService) Weekly(ctx context.Context, cafeteriaID int) ([]model.Diet, error) {
	now := s.now().In(s.processor.loc)
	return s.store.ForWeeks(ctx, cafeteriaID, extract.LastMonday(now), extract.NextMonday(now))
}

func writeFileAtomic(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dest)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}
