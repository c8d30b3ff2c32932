// Package spc automates the credit-bureau portal: login, product selection,
// identifier query and PDF capture of the rendered report.
package spc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/config"
	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/resilience"
)

const provider = "spc"

const (
	defaultResultWait = 30 * time.Second
	fallbackWait      = 5 * time.Second
	pollInterval      = 500 * time.Millisecond
	loginWait         = 20 * time.Second
)

// Ordered locator lists for each element the flow touches.
var (
	usernameLocators = []Locator{CSS("#username"), CSS("input[name='j_username']"), CSS("input[name='usuario']"), CSS("input[type='text']")}
	passwordLocators = []Locator{CSS("#password"), CSS("input[name='j_password']"), CSS("input[type='password']")}
	loginLocators    = []Locator{CSS("#btnLogin"), CSS("button[type='submit']"), CSS("input[type='submit']"), Text("Entrar"), Text("Acessar")}
	phraseLocators   = []Locator{CSS("#fraseSecreta"), CSS("input[name='fraseSecreta']"), CSS("input[name*='frase']")}
	phraseSubmit     = []Locator{CSS("#btnConfirmar"), Text("Confirmar"), Text("Continuar"), CSS("button[type='submit']")}
	menuLocators     = []Locator{CSS("#menu-consultas"), Text("Consultas"), Text("Produtos"), CSS("nav a[href*='consulta']")}
	documentLocators = []Locator{CSS("#documento"), CSS("input[name='documento']"), CSS("input[name*='cnpj']"), CSS("input[placeholder*='CNPJ']")}
	queryLocators    = []Locator{CSS("#btnConsultar"), Text("Consultar"), CSS("button[type='submit']")}
	printLocators    = []Locator{CSS("#btnImprimir"), CSS("button[title*='Imprimir']"), Text("Imprimir"), CSS("a[href*='imprimir']")}

	// Interstitials and ads appear in no particular order; each is
	// dismissed when present.
	interstitialLocators = []Locator{
		CSS(".modal.show button.close"),
		CSS("button[aria-label='Fechar']"),
		CSS("button[aria-label='Close']"),
		CSS(".popup-close"),
		Text("Fechar"),
		Text("Agora não"),
		Text("Não, obrigado"),
	}
)

// Session runs one query per call against the portal. It never retries
// login or query internally; callers decide on retries.
type Session struct {
	cfg config.SPCConfig
	log *zap.Logger
	now func() time.Time

	open       func(ctx context.Context) (context.Context, Page, context.CancelFunc)
	strategies func(p Page) []PDFStrategy
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSession builds a Session backed by Chrome.
func NewSession(cfg config.SPCConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("component", "spc"))
	s := &Session{
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		strategies: defaultStrategies,
		sleep:      sleepCtx,
	}
	s.open = func(ctx context.Context) (context.Context, Page, context.CancelFunc) {
		return openChrome(ctx, cfg, log)
	}
	return s
}

func defaultStrategies(p Page) []PDFStrategy {
	return []PDFStrategy{
		PrintToPDFStrategy(),
		ShortcutStrategy(),
		PrintButtonStrategy(p, printLocators),
	}
}

// Query logs in, runs the configured product for cnpj and saves the report
// PDF under the download directory.
func (s *Session) Query(ctx context.Context, cnpj string) (*model.Document, error) {
	cnpj = model.NormalizeCNPJ(cnpj)
	log := s.log.With(zap.String("cnpj", cnpj))

	if timeout := s.cfg.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tabCtx, page, closeTab := s.open(ctx)
	defer closeTab()

	doc, err := s.run(tabCtx, page, cnpj, log)
	if err != nil && s.cfg.Debug {
		s.captureFailure(tabCtx, page, cnpj, log)
	}
	return doc, err
}

func (s *Session) run(ctx context.Context, page Page, cnpj string, log *zap.Logger) (*model.Document, error) {
	log.Info("spc: logging in")
	if err := s.login(ctx, page); err != nil {
		return nil, err
	}

	s.dismissInterstitials(ctx, page, log)

	log.Info("spc: opening product", zap.String("product", s.cfg.Product))
	if err := s.openProduct(ctx, page); err != nil {
		return nil, err
	}
	s.dismissInterstitials(ctx, page, log)

	if err := s.fill(ctx, page, documentLocators, cnpj, "document field"); err != nil {
		return nil, err
	}
	if err := s.click(ctx, page, queryLocators, "query button"); err != nil {
		return nil, err
	}

	rendered := s.waitForResult(ctx, page)
	if !rendered {
		log.Warn("spc: no result indicator found, continuing after fixed wait")
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, resilience.NewTransportError(provider, 0, eris.Wrap(err, "spc: read page"))
	}
	invalid, msg := DetectInvalidDocument(html)
	if invalid {
		log.Warn("spc: portal flagged the document as invalid", zap.String("message", msg))
	}

	pdf, strategy, err := GeneratePDF(ctx, s.strategies(page)...)
	if err != nil {
		return nil, resilience.NewTransportError(provider, 0, err)
	}

	doc, err := s.writePDF(cnpj, pdf)
	if err != nil {
		return nil, err
	}
	doc.InvalidDocument = invalid
	doc.Strategy = strategy

	log.Info("spc: report saved",
		zap.String("file", doc.FilePath),
		zap.String("strategy", strategy),
		zap.Bool("invalid_document", invalid),
	)
	return doc, nil
}

func (s *Session) login(ctx context.Context, page Page) error {
	if err := page.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrapf(err, "spc: open %s", s.cfg.BaseURL))
	}
	if err := s.fill(ctx, page, usernameLocators, s.cfg.Username, "username field"); err != nil {
		return err
	}
	if err := s.fill(ctx, page, passwordLocators, s.cfg.Password, "password field"); err != nil {
		return err
	}
	if err := s.click(ctx, page, loginLocators, "login button"); err != nil {
		return err
	}

	// The secret phrase is a second screen; some accounts skip it.
	found, err := s.waitFor(ctx, page, append(append([]Locator{}, phraseLocators...), menuLocators...), loginWait)
	if err != nil {
		return resilience.NewAuthError(provider, eris.Wrap(err, "spc: login did not complete"))
	}
	if isOneOf(found, phraseLocators) {
		if s.cfg.SecretPhrase == "" {
			return resilience.NewAuthError(provider, eris.New("spc: portal asked for a secret phrase but none is configured"))
		}
		if err := page.Fill(ctx, found, s.cfg.SecretPhrase); err != nil {
			return resilience.NewTransportError(provider, 0, eris.Wrap(err, "spc: fill secret phrase"))
		}
		if err := s.click(ctx, page, phraseSubmit, "secret phrase button"); err != nil {
			return err
		}
		if _, err := s.waitFor(ctx, page, menuLocators, loginWait); err != nil {
			return resilience.NewAuthError(provider, eris.Wrap(err, "spc: secret phrase rejected"))
		}
	}
	return nil
}

func (s *Session) openProduct(ctx context.Context, page Page) error {
	if err := s.click(ctx, page, menuLocators, "menu"); err != nil {
		return err
	}
	product := []Locator{Text(s.cfg.Product)}
	if _, err := s.waitFor(ctx, page, product, loginWait); err != nil {
		return resilience.NewNotFoundError(provider, eris.Wrapf(err, "spc: product %q not offered", s.cfg.Product))
	}
	return s.click(ctx, page, product, "product "+s.cfg.Product)
}

// dismissInterstitials closes whatever ads or notices are showing. Failures
// are ignored.
func (s *Session) dismissInterstitials(ctx context.Context, page Page, log *zap.Logger) {
	for _, loc := range interstitialLocators {
		ok, err := page.Exists(ctx, loc)
		if err != nil || !ok {
			continue
		}
		if err := page.Click(ctx, loc); err != nil {
			log.Debug("spc: interstitial click failed", zap.Stringer("locator", loc), zap.Error(err))
			continue
		}
		log.Debug("spc: interstitial dismissed", zap.Stringer("locator", loc))
	}
	_ = page.PressEscape(ctx)
}

// waitForResult polls the page for a rendered report until the configured
// wait elapses, then falls back to a fixed pause.
func (s *Session) waitForResult(ctx context.Context, page Page) bool {
	wait := time.Duration(s.cfg.ResultWaitSecs) * time.Second
	if wait <= 0 {
		wait = defaultResultWait
	}
	deadline := s.now().Add(wait)
	for s.now().Before(deadline) {
		if html, err := page.HTML(ctx); err == nil && HasResultIndicator(html) {
			return true
		}
		if err := s.sleep(ctx, pollInterval); err != nil {
			return false
		}
	}
	_ = s.sleep(ctx, fallbackWait)
	return false
}

func (s *Session) waitFor(ctx context.Context, page Page, locators []Locator, wait time.Duration) (Locator, error) {
	deadline := s.now().Add(wait)
	for {
		loc, err := FirstMatch(ctx, page, locators)
		if err == nil {
			return loc, nil
		}
		if !s.now().Before(deadline) {
			return Locator{}, err
		}
		if err := s.sleep(ctx, pollInterval); err != nil {
			return Locator{}, err
		}
	}
}

func (s *Session) fill(ctx context.Context, page Page, locators []Locator, value, what string) error {
	loc, err := s.waitFor(ctx, page, locators, loginWait)
	if err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrapf(err, "spc: %s not found", what))
	}
	if err := page.Fill(ctx, loc, value); err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrapf(err, "spc: fill %s", what))
	}
	return nil
}

func (s *Session) click(ctx context.Context, page Page, locators []Locator, what string) error {
	loc, err := s.waitFor(ctx, page, locators, loginWait)
	if err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrapf(err, "spc: %s not found", what))
	}
	if err := page.Click(ctx, loc); err != nil {
		return resilience.NewTransportError(provider, 0, eris.Wrapf(err, "spc: click %s", what))
	}
	return nil
}

func (s *Session) writePDF(cnpj string, pdf []byte) (*model.Document, error) {
	dir := s.cfg.DownloadDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "spc: create download dir %s", dir)
	}
	name := fmt.Sprintf("%s_%s.pdf", cnpj, s.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return nil, eris.Wrapf(err, "spc: write %s", path)
	}
	return &model.Document{CNPJ: cnpj, FilePath: path, FileName: name}, nil
}

// captureFailure saves a screenshot and the page HTML next to the reports.
func (s *Session) captureFailure(ctx context.Context, page Page, cnpj string, log *zap.Logger) {
	// The query context may already be done; give the capture its own budget.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	base := filepath.Join(s.cfg.DownloadDir, fmt.Sprintf("%s_%s_error", cnpj, s.now().UTC().Format("20060102T150405Z")))
	if png, err := page.Screenshot(cctx); err == nil {
		_ = os.WriteFile(base+".png", png, 0o644)
	}
	if html, err := page.HTML(cctx); err == nil {
		_ = os.WriteFile(base+".html", []byte(html), 0o644)
	}
	log.Info("spc: failure captured", zap.String("path", base))
}

func isOneOf(loc Locator, set []Locator) bool {
	for _, l := range set {
		if l == loc {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
