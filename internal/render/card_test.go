package render

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

func newTestRenderer(t *testing.T, scale int) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	opts.Scale = scale
	r, err := NewRenderer(nil, opts)
	require.NoError(t, err)
	return r
}

func TestRender_PNGDimensions(t *testing.T) {
	tests := []struct {
		name   string
		scale  int
		width  int
		height int
	}{
		{name: "high density", scale: 4, width: 1520, height: 2400},
		{name: "logical size", scale: 1, width: 380, height: 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(t, tt.scale)

			data, err := r.Render(Card{Content: "Stay hungry, stay foolish.", Author: "Steve Jobs"})
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.width, img.Bounds().Dx())
			assert.Equal(t, tt.height, img.Bounds().Dy())
		})
	}
}

func TestRender_EmptyCard(t *testing.T) {
	r := newTestRenderer(t, 1)

	_, err := r.Render(Card{Content: "  ", Author: "someone"})
	assert.ErrorIs(t, err, ErrEmptyCard)

	_, err = r.Render(Card{Content: "text", Author: ""})
	assert.ErrorIs(t, err, ErrEmptyCard)
}

func TestRenderImage_DrawsTextAndRoundsCorners(t *testing.T) {
	r := newTestRenderer(t, 2)
	card := Card{
		Content:    "Simplicity is prerequisite for reliability.",
		Author:     "Edsger Dijkstra",
		Background: color.RGBA{R: 0xff, G: 0xfb, B: 0xe6, A: 0xff},
	}

	img, err := r.RenderImage(card)
	require.NoError(t, err)

	// Corner pixel lies outside the rounded background and keeps the matte.
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, img.RGBAAt(0, 0))
	// Centre-left edge is inside the card.
	assert.Equal(t, color.RGBA{R: 0xff, G: 0xfb, B: 0xe6, A: 0xff}, img.RGBAAt(1, img.Bounds().Dy()/2))

	inked := 0
	bg := color.RGBA{R: 0xff, G: 0xfb, B: 0xe6, A: 0xff}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if px := img.RGBAAt(x, y); px != bg && px != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
				inked++
			}
		}
	}
	assert.Greater(t, inked, 0)
}

func TestLayout_AuthorRightAlignedBelowContent(t *testing.T) {
	r := newTestRenderer(t, 4)
	contentFace, err := r.face(r.fonts[0], r.opts.ContentSize)
	require.NoError(t, err)
	defer contentFace.Close()
	authorFace, err := r.face(r.fonts[0], r.opts.AuthorSize)
	require.NoError(t, err)
	defer authorFace.Close()

	l := r.layout(Card{Content: strings.Repeat("word ", 40), Author: "bob"}, contentFace, authorFace)

	require.Greater(t, len(l.content), 1)
	columnLeft := (r.opts.Width - r.opts.ColumnWidth) / 2 * r.opts.Scale
	columnRight := columnLeft + r.opts.ColumnWidth*r.opts.Scale

	authorWidth := font.MeasureString(authorFace, l.author.text).Ceil()
	assert.Equal(t, columnRight, l.author.x+authorWidth)
	assert.Equal(t, "— bob", l.author.text)

	last := l.content[len(l.content)-1]
	assert.Greater(t, l.author.y, last.y+r.opts.AuthorGap*r.opts.Scale)

	for _, ln := range l.content {
		assert.GreaterOrEqual(t, ln.x, columnLeft)
		assert.LessOrEqual(t, ln.x+font.MeasureString(contentFace, ln.text).Ceil(), columnRight+1)
	}
	assert.True(t, strings.HasPrefix(l.content[0].text, "“"))
}

func TestWrap(t *testing.T) {
	r := newTestRenderer(t, 1)
	face, err := r.face(r.fonts[0], 18)
	require.NoError(t, err)
	defer face.Close()

	t.Run("keeps short text on one line", func(t *testing.T) {
		assert.Equal(t, []string{"short"}, wrap(face, "short", 320))
	})

	t.Run("breaks on spaces", func(t *testing.T) {
		lines := wrap(face, strings.Repeat("alpha beta ", 20), 200)
		require.Greater(t, len(lines), 1)
		for _, l := range lines {
			assert.LessOrEqual(t, font.MeasureString(face, l), fixed.I(200))
			assert.False(t, strings.HasPrefix(l, " "))
		}
	})

	t.Run("splits unspaced text between runes", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 12)
		lines := wrap(face, text, 100)
		require.Greater(t, len(lines), 1)
		assert.Equal(t, text, strings.Join(lines, ""))
	})
}

func TestRender_Concurrent(t *testing.T) {
	r := newTestRenderer(t, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Render(Card{Content: "concurrent", Author: "tester"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMissingGlyphs(t *testing.T) {
	r := newTestRenderer(t, 1)

	assert.Empty(t, r.MissingGlyphs(Card{Content: "Stay hungry, stay foolish.", Author: "Steve Jobs"}))

	// Go Regular has no CJK coverage; the curly quotes and dash are present.
	missing := r.MissingGlyphs(Card{Content: "天生我材必有用。", Author: "李白"})
	assert.ElementsMatch(t, []rune("天生我材必有用。李白"), missing)

	// Repeated runes are reported once.
	assert.Equal(t, []rune("好"), r.MissingGlyphs(Card{Content: "好好 好", Author: "x"}))
}

func TestRender_CJKWithoutCoverageStillEncodes(t *testing.T) {
	r := newTestRenderer(t, 1)

	data, err := r.Render(Card{Content: "天生我材必有用。", Author: "李白"})
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestNewRendererFromFiles(t *testing.T) {
	saved := SystemFallbackFonts
	SystemFallbackFonts = nil
	t.Cleanup(func() { SystemFallbackFonts = saved })

	path := filepath.Join(t.TempDir(), "regular.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o600))

	r, err := NewRendererFromFiles([]string{path, " "}, DefaultOptions())
	require.NoError(t, err)
	// Configured font first, Go Regular appended as the Latin fallback.
	assert.Len(t, r.fonts, 2)

	_, err = NewRendererFromFiles([]string{filepath.Join(t.TempDir(), "missing.ttf")}, DefaultOptions())
	assert.Error(t, err)

	_, err = NewRendererWithFonts([][]byte{[]byte("not a font")}, DefaultOptions())
	assert.Error(t, err)
}

func TestFit_LongContentKeepsAuthorOnCanvas(t *testing.T) {
	r := newTestRenderer(t, 1)
	card := Card{Content: strings.Repeat("never give up ", 400), Author: "Winston Churchill"}

	l, contentFace, authorFace, err := r.fit(card, r.fonts[0])
	require.NoError(t, err)
	defer contentFace.Close()
	defer authorFace.Close()

	assert.True(t, l.truncated)
	minFace, err := r.face(r.fonts[0], r.opts.MinContentSize)
	require.NoError(t, err)
	defer minFace.Close()
	assert.Equal(t, minFace.Metrics().Height, contentFace.Metrics().Height)

	last := l.content[len(l.content)-1]
	assert.True(t, strings.HasSuffix(last.text, "…”"))
	assert.Greater(t, l.author.y, last.y)
	assert.LessOrEqual(t, l.author.y+authorFace.Metrics().Descent.Ceil(), r.opts.Height)
	assert.Equal(t, "— Winston Churchill", l.author.text)
}

func TestFit_ShortContentKeepsFullSize(t *testing.T) {
	r := newTestRenderer(t, 1)

	l, contentFace, authorFace, err := r.fit(Card{Content: "Be kind.", Author: "Anon"}, r.fonts[0])
	require.NoError(t, err)
	defer contentFace.Close()
	defer authorFace.Close()

	assert.False(t, l.truncated)
	fullFace, err := r.face(r.fonts[0], r.opts.ContentSize)
	require.NoError(t, err)
	defer fullFace.Close()
	assert.Equal(t, fullFace.Metrics().Height, contentFace.Metrics().Height)
	assert.Equal(t, []line{{text: "“Be kind.”", x: l.content[0].x, y: l.content[0].y}}, l.content)
}
