package spc

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// LocatorKind selects how a Locator's value is interpreted.
type LocatorKind string

const (
	ByCSS   LocatorKind = "css"
	ByXPath LocatorKind = "xpath"
	ByText  LocatorKind = "text"
)

// Locator is one way of finding an element on the portal. Pages are located
// through ordered lists of locators; the first one present wins.
type Locator struct {
	Kind  LocatorKind
	Value string
}

// CSS, XPath and Text build locators.
func CSS(sel string) Locator    { return Locator{Kind: ByCSS, Value: sel} }
func XPath(expr string) Locator { return Locator{Kind: ByXPath, Value: expr} }
func Text(s string) Locator     { return Locator{Kind: ByText, Value: s} }

func (l Locator) String() string { return string(l.Kind) + ":" + l.Value }

// Query returns the selector and chromedp query option for the locator. Text
// locators match any clickable element whose normalized text contains the
// value.
func (l Locator) Query() (string, chromedp.QueryOption) {
	switch l.Kind {
	case ByXPath:
		return l.Value, chromedp.BySearch
	case ByText:
		return fmt.Sprintf(`//*[self::a or self::button or self::span or self::li or self::div or self::input]`+
			`[contains(normalize-space(.), %s)][not(descendant::*[contains(normalize-space(.), %s)])]`,
			xpathLiteral(l.Value), xpathLiteral(l.Value)), chromedp.BySearch
	default:
		return l.Value, chromedp.ByQuery
	}
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Finder reports whether a locator currently matches a visible element.
type Finder interface {
	Exists(ctx context.Context, loc Locator) (bool, error)
}

// ErrNoMatch is returned by FirstMatch when no locator matches.
var ErrNoMatch = eris.New("spc: no locator matched")

// FirstMatch returns the first locator the finder reports as present. Finder
// errors on one locator do not stop the search; the last one is reported
// when nothing matches.
func FirstMatch(ctx context.Context, f Finder, locators []Locator) (Locator, error) {
	var lastErr error
	for _, loc := range locators {
		if err := ctx.Err(); err != nil {
			return Locator{}, err
		}
		ok, err := f.Exists(ctx, loc)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return loc, nil
		}
	}
	if lastErr != nil {
		return Locator{}, eris.Wrap(ErrNoMatch, lastErr.Error())
	}
	return Locator{}, ErrNoMatch
}
