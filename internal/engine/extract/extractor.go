package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rendis/mapsweep/internal/model"
)

const DefaultFieldTimeout = 10 * time.Second

// Extractor turns the focused listing into a Business. Every field is read
// on its own; a failure leaves that field empty and the rest untouched.
type Extractor struct {
	logger  *zap.Logger
	timeout time.Duration
}

func NewExtractor(logger *zap.Logger, fieldTimeout time.Duration) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fieldTimeout <= 0 {
		fieldTimeout = DefaultFieldTimeout
	}
	return &Extractor{logger: logger, timeout: fieldTimeout}
}

// Extract never fails. A record without a name is still returned; callers
// decide whether to keep it.
func (e *Extractor) Extract(ctx context.Context, v View) model.Business {
	var b model.Business

	b.Name = e.text(ctx, v, FieldName)
	b.Address = e.text(ctx, v, FieldAddress)
	b.Website = e.text(ctx, v, FieldWebsite)
	b.Phone = e.text(ctx, v, FieldPhone)

	if label := e.attr(ctx, v, FieldReviews, "aria-label"); label != "" {
		if avg, count, err := parseReviews(label); err != nil {
			e.logger.Warn("failed to parse reviews", zap.String("label", label), zap.Error(err))
		} else {
			b.ReviewsAverage = &avg
			b.ReviewsCount = &count
		}
	}

	var pageURL string
	_ = e.guard(ctx, "url", func(ctx context.Context) error {
		s, err := v.URL(ctx)
		if err != nil {
			return err
		}
		pageURL = s
		return nil
	})
	if lat, lon, ok := parseCoords(pageURL); ok {
		b.Latitude = &lat
		b.Longitude = &lon
	} else if pageURL != "" {
		e.logger.Debug("no coordinates in url", zap.String("url", pageURL))
	}

	return b
}

func (e *Extractor) text(ctx context.Context, v View, f Field) string {
	var out string
	_ = e.guard(ctx, f.String(), func(ctx context.Context) error {
		s, err := v.Text(ctx, f)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out
}

func (e *Extractor) attr(ctx context.Context, v View, f Field, name string) string {
	var out string
	_ = e.guard(ctx, f.String(), func(ctx context.Context) error {
		s, err := v.Attr(ctx, f, name)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out
}

// guard runs one lookup under its own timeout and absorbs errors and panics.
func (e *Extractor) guard(ctx context.Context, field string, fn func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reading %s: %v", field, r)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrFieldNotFound):
			e.logger.Debug("field not present", zap.String("field", field))
		default:
			e.logger.Warn("failed to extract field", zap.String("field", field), zap.Error(err))
		}
	}()

	return fn(ctx)
}
