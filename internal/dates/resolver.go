package dates

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbio/pharma-research/internal/model"
)

// Extractor is the model-backed tier. It is optional; without one the
// resolver falls straight from metadata parsing to regex scanning.
type Extractor interface {
	Extract(ctx context.Context, art model.Article) (time.Time, error)
}

// Resolver assigns each article a resolved date and records which tier
// produced it.
type Resolver struct {
	extractor   Extractor
	concurrency int
}

// NewResolver creates a resolver. concurrency bounds simultaneous model
// calls.
func NewResolver(extractor Extractor, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{extractor: extractor, concurrency: concurrency}
}

// Resolve fills ResolvedDate and DateOrigin on every article, in place.
// Tier order: provider metadata, model extraction, regex scan. Model calls
// run concurrently; metadata and regex tiers are pure and run inline. Model
// failures degrade to the regex tier rather than failing the batch.
func (r *Resolver) Resolve(ctx context.Context, articles []model.Article) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range articles {
		art := &articles[i]

		if t := ParseMetadata(art.RawDate); !t.IsZero() {
			art.ResolvedDate = t
			art.DateOrigin = model.DateOriginMetadata
			continue
		}

		g.Go(func() error {
			if r.extractor != nil {
				t, err := r.extractor.Extract(gCtx, *art)
				if err != nil {
					zap.L().Debug("model date extraction failed",
						zap.String("url", art.URL),
						zap.Error(err),
					)
				} else if !t.IsZero() {
					art.ResolvedDate = t
					art.DateOrigin = model.DateOriginModel
					return nil
				}
			}
			if t := Scan(art.URL, art.Title, art.Content); !t.IsZero() {
				art.ResolvedDate = t
				art.DateOrigin = model.DateOriginRegex
				return nil
			}
			art.DateOrigin = model.DateOriginNone
			return nil
		})
	}
	return g.Wait()
}

// FilterResult summarizes a date-window filter pass.
type FilterResult struct {
	InRange    []model.Article
	OutOfRange int
	NoDate     int

	// ModelRescued counts in-range articles whose date came from the model
	// tier, i.e. articles that metadata parsing alone would have dropped.
	ModelRescued int
}

// FilterWindow keeps articles whose resolved date falls inside [start, end].
// Articles with no resolved date are dropped and counted under NoDate; an
// article only survives the window with a date that places it there.
func FilterWindow(articles []model.Article, start, end time.Time) FilterResult {
	var res FilterResult
	for _, art := range articles {
		if !art.HasDate() {
			res.NoDate++
			continue
		}
		if art.ResolvedDate.Before(start) || art.ResolvedDate.After(end) {
			res.OutOfRange++
			continue
		}
		if art.DateOrigin == model.DateOriginModel {
			res.ModelRescued++
		}
		res.InRange = append(res.InRange, art)
	}
	return res
}
