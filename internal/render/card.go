// Package render rasterises quote share cards into PNG images.
//
// A card is described structurally (text, author, colours) and laid out on a
// fixed portrait canvas, so rendering does not depend on any live view state.
// Each call owns its canvas and font face; a Renderer is safe for concurrent use.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrEmptyCard is returned when a card has no text to draw.
var ErrEmptyCard = errors.New("card content and author are required")

// Card is the structured description of a share card.
type Card struct {
	Content    string
	Author     string
	Background color.Color
	Foreground color.Color
	Accent     color.Color
}

// Options control the canvas geometry. Sizes are logical pixels; the bitmap
// is Width*Scale by Height*Scale.
type Options struct {
	Width          int
	Height         int
	Scale          int
	ColumnWidth    int
	CornerRadius   int
	ContentSize    float64
	MinContentSize float64
	AuthorSize     float64
	AuthorGap      int
	LineSpacing    float64
	MatteColor     color.Color
	ContentOpening string
	ContentClosing string
	AuthorPrefix   string
	Ellipsis       string
}

// DefaultOptions is the portrait 380x600 layout rasterised at 4x.
func DefaultOptions() Options {
	return Options{
		Width:          380,
		Height:         600,
		Scale:          4,
		ColumnWidth:    320,
		CornerRadius:   18,
		ContentSize:    18,
		MinContentSize: 10,
		AuthorSize:     18,
		AuthorGap:      32,
		LineSpacing:    1.5,
		MatteColor:     color.White,
		ContentOpening: "“",
		ContentClosing: "”",
		AuthorPrefix:   "— ",
		Ellipsis:       "…",
	}
}

var (
	DefaultBackground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	DefaultForeground = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	DefaultAccent     = color.RGBA{R: 0xe0, G: 0x7a, B: 0x1f, A: 0xff}
)

// SystemFallbackFonts are CJK fonts picked up by NewRendererFromFiles when
// present on the host. Go Regular has no CJK glyphs.
var SystemFallbackFonts = []string{
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/google-noto-cjk/NotoSansCJK-Regular.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-microhei.ttc",
}

// Renderer draws cards with an ordered chain of parsed fonts. Each card is
// drawn with the first font that has a glyph for every rune.
type Renderer struct {
	fonts []*opentype.Font
	opts  Options
}

// NewRenderer parses fontData (TTF, OTF or the first face of a TTC). Nil
// fontData selects Go Regular.
func NewRenderer(fontData []byte, opts Options) (*Renderer, error) {
	return NewRendererWithFonts([][]byte{fontData}, opts)
}

// NewRendererWithFonts parses a font chain in preference order. Empty
// entries are skipped; an empty chain selects Go Regular.
func NewRendererWithFonts(fonts [][]byte, opts Options) (*Renderer, error) {
	r := &Renderer{opts: withDefaults(opts)}
	for i, data := range fonts {
		if len(data) == 0 {
			continue
		}
		f, err := parseFont(data)
		if err != nil {
			return nil, fmt.Errorf("parse font %d: %w", i, err)
		}
		r.fonts = append(r.fonts, f)
	}
	if len(r.fonts) == 0 {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		r.fonts = append(r.fonts, f)
	}
	return r, nil
}

// NewRendererFromFiles loads the configured font files, then Go Regular,
// then any SystemFallbackFonts found on the host. Configured files must
// load; system fonts that fail to load are skipped.
func NewRendererFromFiles(paths []string, opts Options) (*Renderer, error) {
	var chain [][]byte
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		chain = append(chain, data)
	}
	chain = append(chain, goregular.TTF)

	r, err := NewRendererWithFonts(chain, opts)
	if err != nil {
		return nil, err
	}
	for _, path := range SystemFallbackFonts {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if f, err := parseFont(data); err == nil {
			r.fonts = append(r.fonts, f)
		}
	}
	return r, nil
}

func parseFont(data []byte) (*opentype.Font, error) {
	if bytes.HasPrefix(data, []byte("ttcf")) {
		c, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, err
		}
		return c.Font(0)
	}
	return opentype.Parse(data)
}

func (r *Renderer) Options() Options {
	return r.opts
}

// MissingGlyphs reports the runes of card that no font in the chain can
// draw. Such runes render as the font's placeholder glyph.
func (r *Renderer) MissingGlyphs(card Card) []rune {
	_, missing := r.fontFor(r.cardText(card))
	return missing
}

func (r *Renderer) cardText(card Card) string {
	return r.opts.ContentOpening + card.Content + r.opts.ContentClosing + r.opts.AuthorPrefix + card.Author
}

// fontFor returns the first font covering text, or the one missing the
// fewest runes along with those runes.
func (r *Renderer) fontFor(text string) (*opentype.Font, []rune) {
	var (
		best        *opentype.Font
		bestMissing []rune
	)
	for i, f := range r.fonts {
		missing := missingGlyphs(f, text)
		if len(missing) == 0 {
			return f, nil
		}
		if i == 0 || len(missing) < len(bestMissing) {
			best, bestMissing = f, missing
		}
	}
	return best, bestMissing
}

func missingGlyphs(f *opentype.Font, text string) []rune {
	var (
		buf     sfnt.Buffer
		missing []rune
	)
	seen := make(map[rune]bool)
	for _, ru := range text {
		if unicode.IsSpace(ru) || unicode.IsControl(ru) || seen[ru] {
			continue
		}
		seen[ru] = true
		if idx, err := f.GlyphIndex(&buf, ru); err != nil || idx == 0 {
			missing = append(missing, ru)
		}
	}
	return missing
}

// Render lays out the card and encodes it as PNG.
func (r *Renderer) Render(card Card) ([]byte, error) {
	img, err := r.RenderImage(card)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderImage lays out and draws the card onto a fresh canvas.
func (r *Renderer) RenderImage(card Card) (*image.RGBA, error) {
	card = cardWithDefaults(card)
	if strings.TrimSpace(card.Content) == "" || strings.TrimSpace(card.Author) == "" {
		return nil, ErrEmptyCard
	}

	f, _ := r.fontFor(r.cardText(card))
	l, contentFace, authorFace, err := r.fit(card, f)
	if err != nil {
		return nil, err
	}
	defer contentFace.Close()
	defer authorFace.Close()

	s := r.opts.Scale
	canvas := image.NewRGBA(image.Rect(0, 0, r.opts.Width*s, r.opts.Height*s))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.opts.MatteColor), image.Point{}, draw.Src)
	draw.DrawMask(
		canvas, canvas.Bounds(),
		image.NewUniform(card.Background), image.Point{},
		&roundedRect{rect: canvas.Bounds(), radius: r.opts.CornerRadius * s}, image.Point{},
		draw.Over,
	)

	drawText(canvas, contentFace, card.Foreground, l.content)
	drawText(canvas, authorFace, card.Accent, []line{l.author})

	return canvas, nil
}

// fit lays the card out at the content size, stepping the size down while
// the text has to be truncated. Below MinContentSize the truncated layout is
// kept.
func (r *Renderer) fit(card Card, f *opentype.Font) (cardLayout, font.Face, font.Face, error) {
	authorFace, err := r.face(f, r.opts.AuthorSize)
	if err != nil {
		return cardLayout{}, nil, nil, err
	}
	for size := r.opts.ContentSize; ; size-- {
		contentFace, err := r.face(f, size)
		if err != nil {
			authorFace.Close()
			return cardLayout{}, nil, nil, err
		}
		l := r.layout(card, contentFace, authorFace)
		if !l.truncated || size-1 < r.opts.MinContentSize {
			return l, contentFace, authorFace, nil
		}
		contentFace.Close()
	}
}

func (r *Renderer) face(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size * float64(r.opts.Scale),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return face, nil
}

// line is one run of text with its pen position in canvas pixels.
type line struct {
	text string
	x    int
	y    int
}

type cardLayout struct {
	content   []line
	author    line
	truncated bool
}

// layout centres the wrapped content lines in the column, places the author
// line right-aligned AuthorGap below them and centres the whole block
// vertically. Content lines that would push the author line past the
// vertical margin are dropped and the last kept line ends in Ellipsis.
func (r *Renderer) layout(card Card, contentFace, authorFace font.Face) cardLayout {
	s := r.opts.Scale
	canvasW := r.opts.Width * s
	canvasH := r.opts.Height * s
	columnW := r.opts.ColumnWidth * s
	columnLeft := (canvasW - columnW) / 2
	columnRight := columnLeft + columnW

	text := r.opts.ContentOpening + strings.TrimSpace(card.Content) + r.opts.ContentClosing
	wrapped := wrap(contentFace, text, columnW)

	contentMetrics := contentFace.Metrics()
	lineHeight := int(float64(contentMetrics.Height.Ceil()) * r.opts.LineSpacing)
	authorMetrics := authorFace.Metrics()
	authorHeight := authorMetrics.Height.Ceil()

	authorBlock := r.opts.AuthorGap*s + authorHeight
	maxLines := max((canvasH-2*columnLeft-authorBlock)/lineHeight, 1)
	truncated := false
	if len(wrapped) > maxLines {
		wrapped = truncateLines(contentFace, wrapped[:maxLines], columnW, r.opts.Ellipsis+r.opts.ContentClosing)
		truncated = true
	}

	blockHeight := len(wrapped)*lineHeight + authorBlock
	top := (canvasH - blockHeight) / 2
	if top < 0 {
		top = 0
	}

	l := cardLayout{content: make([]line, 0, len(wrapped)), truncated: truncated}
	baselineOffset := (lineHeight-contentMetrics.Height.Ceil())/2 + contentMetrics.Ascent.Ceil()
	for i, text := range wrapped {
		width := font.MeasureString(contentFace, text).Ceil()
		l.content = append(l.content, line{
			text: text,
			x:    columnLeft + (columnW-width)/2,
			y:    top + i*lineHeight + baselineOffset,
		})
	}

	authorText := r.opts.AuthorPrefix + strings.TrimSpace(card.Author)
	authorWidth := font.MeasureString(authorFace, authorText).Ceil()
	l.author = line{
		text: authorText,
		x:    columnRight - authorWidth,
		y:    top + len(wrapped)*lineHeight + r.opts.AuthorGap*s + authorMetrics.Ascent.Ceil(),
	}
	return l
}

func drawText(dst draw.Image, face font.Face, c color.Color, lines []line) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for _, l := range lines {
		d.Dot = fixed.P(l.x, l.y)
		d.DrawString(l.text)
	}
}

// wrap breaks text into lines no wider than maxWidth. Words are kept whole
// where they fit; a word wider than a line (or unspaced CJK text) is split
// between runes.
func wrap(face font.Face, text string, maxWidth int) []string {
	limit := fixed.I(maxWidth)
	var lines []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			lines = append(lines, strings.TrimRightFunc(current.String(), unicode.IsSpace))
			current.Reset()
		}
	}

	for _, word := range splitWords(text) {
		candidate := current.String() + word
		if font.MeasureString(face, strings.TrimRightFunc(candidate, unicode.IsSpace)) <= limit {
			current.WriteString(word)
			continue
		}
		flush()
		trimmed := strings.TrimLeftFunc(word, unicode.IsSpace)
		if font.MeasureString(face, strings.TrimRightFunc(trimmed, unicode.IsSpace)) <= limit {
			current.WriteString(trimmed)
			continue
		}
		for _, r := range trimmed {
			next := current.String() + string(r)
			if current.Len() > 0 && font.MeasureString(face, next) > limit {
				flush()
			}
			current.WriteRune(r)
		}
	}
	flush()

	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// truncateLines shortens the last line until suffix fits after it.
func truncateLines(face font.Face, lines []string, maxWidth int, suffix string) []string {
	limit := fixed.I(maxWidth)
	last := []rune(strings.TrimRightFunc(lines[len(lines)-1], unicode.IsSpace))
	for len(last) > 0 && font.MeasureString(face, string(last)+suffix) > limit {
		last = last[:len(last)-1]
	}
	lines[len(lines)-1] = strings.TrimRightFunc(string(last), unicode.IsSpace) + suffix
	return lines
}

// splitWords splits text after each run of spaces, keeping the spaces
// attached to the preceding word.
func splitWords(text string) []string {
	var words []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && inSpace {
			words = append(words, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		words = append(words, text[start:])
	}
	return words
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Scale <= 0 {
		opts.Scale = def.Scale
	}
	if opts.ColumnWidth <= 0 || opts.ColumnWidth > opts.Width {
		opts.ColumnWidth = min(def.ColumnWidth, opts.Width)
	}
	if opts.CornerRadius < 0 {
		opts.CornerRadius = 0
	}
	if opts.ContentSize <= 0 {
		opts.ContentSize = def.ContentSize
	}
	if opts.MinContentSize <= 0 || opts.MinContentSize > opts.ContentSize {
		opts.MinContentSize = min(def.MinContentSize, opts.ContentSize)
	}
	if opts.AuthorSize <= 0 {
		opts.AuthorSize = def.AuthorSize
	}
	if opts.AuthorGap < 0 {
		opts.AuthorGap = def.AuthorGap
	}
	if opts.LineSpacing <= 0 {
		opts.LineSpacing = def.LineSpacing
	}
	if opts.MatteColor == nil {
		opts.MatteColor = def.MatteColor
	}
	return opts
}

func cardWithDefaults(card Card) Card {
	if card.Background == nil {
		card.Background = DefaultBackground
	}
	if card.Foreground == nil {
		card.Foreground = DefaultForeground
	}
	if card.Accent == nil {
		card.Accent = DefaultAccent
	}
	return card
}

// roundedRect is an alpha mask covering rect with rounded corners.
type roundedRect struct {
	rect   image.Rectangle
	radius int
}

func (m *roundedRect) ColorModel() color.Model { return color.AlphaModel }

func (m *roundedRect) Bounds() image.Rectangle { return m.rect }

func (m *roundedRect) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.rect) {
		return color.Transparent
	}
	r := m.radius
	if r <= 0 {
		return color.Opaque
	}
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r:
		cx = m.rect.Min.X + r
	case x >= m.rect.Max.X-r:
		cx = m.rect.Max.X - r - 1
	}
	switch {
	case y < m.rect.Min.Y+r:
		cy = m.rect.Min.Y + r
	case y >= m.rect.Max.Y-r:
		cy = m.rect.Max.Y - r - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Transparent
	}
	return color.Opaque
}
