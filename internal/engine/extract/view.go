package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrFieldNotFound is returned by a View when the field is not on the page.
var ErrFieldNotFound = errors.New("field not found")

// View gives read-only access to the focused listing by field role.
type View interface {
	Text(ctx context.Context, f Field) (string, error)
	Attr(ctx context.Context, f Field, name string) (string, error)
	URL(ctx context.Context) (string, error)
}

// HTMLView is a View over an HTML snapshot of the details panel.
type HTMLView struct {
	doc       *goquery.Document
	url       string
	selectors Selectors
}

func NewHTMLView(html, pageURL string, selectors Selectors) (*HTMLView, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	return &HTMLView{doc: doc, url: pageURL, selectors: selectors}, nil
}

func (v *HTMLView) find(f Field) (*goquery.Selection, error) {
	sel, ok := v.selectors[f]
	if !ok || sel == "" {
		return nil, fmt.Errorf("%s: no selector: %w", f, ErrFieldNotFound)
	}
	s := v.doc.Find(sel).First()
	if s.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", f, ErrFieldNotFound)
	}
	return s, nil
}

func (v *HTMLView) Text(ctx context.Context, f Field) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := v.find(f)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s.Text()), nil
}

func (v *HTMLView) Attr(ctx context.Context, f Field, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := v.find(f)
	if err != nil {
		return "", err
	}
	val, ok := s.Attr(name)
	if !ok {
		return "", fmt.Errorf("%s[%s]: %w", f, name, ErrFieldNotFound)
	}
	return strings.TrimSpace(val), nil
}

func (v *HTMLView) URL(ctx context.Context) (string, error) {
	return v.url, ctx.Err()
}
