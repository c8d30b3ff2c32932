package spc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	present map[Locator]bool
	fail    map[Locator]error
	probed  []Locator
}

func (f *fakeFinder) Exists(_ context.Context, loc Locator) (bool, error) {
	f.probed = append(f.probed, loc)
	if err := f.fail[loc]; err != nil {
		return false, err
	}
	return f.present[loc], nil
}

func TestFirstMatch_ReturnsFirstPresent(t *testing.T) {
	locs := []Locator{CSS("#a"), XPath("//b"), Text("Consultar")}
	f := &fakeFinder{present: map[Locator]bool{XPath("//b"): true, Text("Consultar"): true}}

	got, err := FirstMatch(context.Background(), f, locs)
	require.NoError(t, err)
	assert.Equal(t, XPath("//b"), got)
	assert.Equal(t, []Locator{CSS("#a"), XPath("//b")}, f.probed)
}

func TestFirstMatch_SkipsFinderErrors(t *testing.T) {
	locs := []Locator{CSS("#broken"), CSS("#ok")}
	f := &fakeFinder{
		present: map[Locator]bool{CSS("#ok"): true},
		fail:    map[Locator]error{CSS("#broken"): errors.New("node detached")},
	}

	got, err := FirstMatch(context.Background(), f, locs)
	require.NoError(t, err)
	assert.Equal(t, CSS("#ok"), got)
}

func TestFirstMatch_NoMatch(t *testing.T) {
	f := &fakeFinder{fail: map[Locator]error{CSS("#x"): errors.New("timeout")}}

	_, err := FirstMatch(context.Background(), f, []Locator{CSS("#x"), CSS("#y")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Contains(t, err.Error(), "timeout")

	_, err = FirstMatch(context.Background(), &fakeFinder{}, nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFirstMatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFinder{present: map[Locator]bool{CSS("#a"): true}}
	_, err := FirstMatch(ctx, f, []Locator{CSS("#a")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.probed)
}

func TestLocatorQuery(t *testing.T) {
	sel, _ := CSS("#btn").Query()
	assert.Equal(t, "#btn", sel)

	sel, _ = XPath("//button[1]").Query()
	assert.Equal(t, "//button[1]", sel)

	sel, _ = Text("Imprimir").Query()
	assert.Contains(t, sel, `contains(normalize-space(.), "Imprimir")`)

	assert.Equal(t, "text:Imprimir", Text("Imprimir").String())

	_, by := Text("x").Query()
	assert.NotNil(t, by)
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"Consultar"`, xpathLiteral("Consultar"))
	assert.Equal(t, `'diz "olá"'`, xpathLiteral(`diz "olá"`))
	assert.Equal(t, `concat("it's ", '"', "x", '"', "")`, xpathLiteral(`it's "x"`))
}
