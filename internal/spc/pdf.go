package spc

import (
	"context"
	"errors"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PDFStrategy is one way of turning the rendered report into a PDF.
type PDFStrategy interface {
	Name() string
	Generate(ctx context.Context) ([]byte, error)
}

// StrategyFunc adapts a function to PDFStrategy.
type StrategyFunc struct {
	Label string
	Fn    func(ctx context.Context) ([]byte, error)
}

func (s StrategyFunc) Name() string                                 { return s.Label }
func (s StrategyFunc) Generate(ctx context.Context) ([]byte, error) { return s.Fn(ctx) }

// ErrEmptyPDF is returned by a strategy that produced no bytes.
var ErrEmptyPDF = eris.New("spc: empty pdf")

// GeneratePDF tries each strategy in order and returns the first non-empty
// PDF with the name of the strategy that produced it.
func GeneratePDF(ctx context.Context, strategies ...PDFStrategy) ([]byte, string, error) {
	if len(strategies) == 0 {
		return nil, "", eris.New("spc: no pdf strategies")
	}
	log := zap.L().With(zap.String("component", "spc.pdf"))

	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", eris.Wrap(err, "spc: generate pdf")
		}
		data, err := s.Generate(ctx)
		if err == nil && len(data) == 0 {
			err = ErrEmptyPDF
		}
		if err != nil {
			log.Warn("pdf strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
			errs = append(errs, eris.Wrap(err, s.Name()))
			continue
		}
		log.Debug("pdf generated", zap.String("strategy", s.Name()), zap.Int("bytes", len(data)))
		return data, s.Name(), nil
	}
	return nil, "", eris.Wrapf(errors.Join(errs...), "spc: all %d pdf strategies failed", len(strategies))
}

// Strategy names.
const (
	StrategyPrintToPDF  = "print_to_pdf"
	StrategyShortcut    = "keyboard_shortcut"
	StrategyPrintButton = "print_button"
)

func printToPDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	return buf, err
}

// PrintToPDFStrategy asks the browser for the PDF directly over CDP.
func PrintToPDFStrategy() PDFStrategy {
	return StrategyFunc{Label: StrategyPrintToPDF, Fn: printToPDF}
}

const capturePrintJS = `(() => {
	window.__onboardPrinted = false;
	window.print = function () { window.__onboardPrinted = true; };
	return true;
})()`

// ShortcutStrategy replaces window.print with a recorder, presses Ctrl+P and,
// when the page reacted, prints over CDP. Pages that bind their own print
// handler to the shortcut only render the printable layout on that path.
func ShortcutStrategy() PDFStrategy {
	return StrategyFunc{Label: StrategyShortcut, Fn: func(ctx context.Context) ([]byte, error) {
		var installed, printed bool
		err := chromedp.Run(ctx,
			chromedp.Evaluate(capturePrintJS, &installed),
			chromedp.KeyEvent("p", chromedp.KeyModifiers(input.ModifierCtrl)),
			chromedp.Sleep(shortcutSettle),
			chromedp.Evaluate(`window.__onboardPrinted === true`, &printed),
		)
		if err != nil {
			return nil, err
		}
		if !printed {
			return nil, eris.New("spc: print shortcut was not handled by the page")
		}
		return printToPDF(ctx)
	}}
}

// PrintButtonStrategy clicks the first visible print button and then prints
// over CDP.
func PrintButtonStrategy(f Finder, buttons []Locator) PDFStrategy {
	return StrategyFunc{Label: StrategyPrintButton, Fn: func(ctx context.Context) ([]byte, error) {
		loc, err := FirstMatch(ctx, f, buttons)
		if err != nil {
			return nil, eris.Wrap(err, "spc: find print button")
		}
		var installed bool
		sel, by := loc.Query()
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(capturePrintJS, &installed),
			chromedp.Click(sel, by, chromedp.NodeVisible),
			chromedp.Sleep(shortcutSettle),
		); err != nil {
			return nil, eris.Wrapf(err, "spc: click %s", loc)
		}
		return printToPDF(ctx)
	}}
}
