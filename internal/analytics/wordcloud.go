package analytics

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// WordCloudSize is how many words a cloud tries to place.
const WordCloudSize = 100

const (
	wordPadding  = 2
	shrinkFactor = 0.85
	// spiralSpacing is the radius gained per radian; turns sit about 19px
	// apart.
	spiralSpacing = 3.0
	spiralStep    = 4.0
)

// CloudStyle sets the canvas and lettering of a word cloud. Font sizes are in
// points at 72 DPI, so one point is one pixel.
type CloudStyle struct {
	Width, Height int
	Background    color.Color
	Palette       []color.Color
	MaxFontSize   float64
	MinFontSize   float64
	// RelativeScaling weighs raw frequency against rank when sizing words.
	RelativeScaling float64
}

var (
	// TodayCloud is the daily word picture of the room's chat.
	TodayCloud = CloudStyle{
		Width:           1200,
		Height:          600,
		Background:      color.White,
		Palette:         []color.Color{drawing.ColorFromHex("1e88e5"), drawing.ColorFromHex("26a69a"), drawing.ColorFromHex("ab47bc"), drawing.ColorFromHex("ff9800"), drawing.ColorFromHex("ef5350")},
		MaxFontSize:     140,
		MinFontSize:     10,
		RelativeScaling: 0.2,
	}
	// UsersCloud is the picture of who talked today, drawn on a transparent
	// canvas in blue and purple.
	UsersCloud = CloudStyle{
		Width:           800,
		Height:          400,
		Background:      color.Transparent,
		Palette:         []color.Color{drawing.ColorFromHex("4d004b"), drawing.ColorFromHex("810f7c"), drawing.ColorFromHex("88419d"), drawing.ColorFromHex("8c6bb1"), drawing.ColorFromHex("8c96c6")},
		MaxFontSize:     90,
		MinFontSize:     8,
		RelativeScaling: 0.5,
	}
)

type placedWord struct {
	Word  string
	Size  float64
	Box   image.Rectangle
	Color color.Color
}

// RenderWordCloud lays the leading counts out on a spiral from the center
// of the canvas, larger words first, and writes the picture as PNG. Words
// that no longer fit at the minimum size are left out.
func RenderWordCloud(w io.Writer, style CloudStyle, counts []WordCount) error {
	f, err := chart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("load cloud font: %w", err)
	}

	faces := newFaceCache(f)
	words := layoutCloud(style, Top(counts, WordCloudSize), faces)
	if len(words) == 0 {
		return ErrNoData
	}

	img := image.NewRGBA(image.Rect(0, 0, style.Width, style.Height))
	if style.Background != nil {
		draw.Draw(img, img.Bounds(), image.NewUniform(style.Background), image.Point{}, draw.Src)
	}
	for _, pw := range words {
		face := faces.face(pw.Size)
		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(pw.Color),
			Face: face,
			Dot:  fixed.P(pw.Box.Min.X, pw.Box.Min.Y+face.Metrics().Ascent.Ceil()),
		}
		d.DrawString(pw.Word)
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode word cloud: %w", err)
	}
	return nil
}

type faceCache struct {
	font  *truetype.Font
	faces map[float64]font.Face
}

func newFaceCache(f *truetype.Font) *faceCache {
	return &faceCache{font: f, faces: make(map[float64]font.Face)}
}

func (c *faceCache) face(size float64) font.Face {
	size = math.Round(size*2) / 2
	if face, ok := c.faces[size]; ok {
		return face
	}
	face := truetype.NewFace(c.font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	c.faces[size] = face
	return face
}

func (c *faceCache) measure(word string, size float64) (int, int) {
	face := c.face(size)
	m := face.Metrics()
	return font.MeasureString(face, word).Ceil(), (m.Ascent + m.Descent).Ceil()
}

// layoutCloud assigns each word a size and a free box. counts must be sorted
// by count, highest first.
func layoutCloud(style CloudStyle, counts []WordCount, faces *faceCache) []placedWord {
	if len(counts) == 0 || style.Width <= 0 || style.Height <= 0 {
		return nil
	}

	bounds := image.Rect(0, 0, style.Width, style.Height)
	peak := float64(counts[0].Count)
	if peak <= 0 {
		peak = 1
	}

	var placed []placedWord
	taken := make([]image.Rectangle, 0, len(counts))
	for i, c := range counts {
		rank := 1 - float64(i)/float64(len(counts))
		frac := style.RelativeScaling*float64(c.Count)/peak + (1-style.RelativeScaling)*rank
		size := style.MinFontSize + (style.MaxFontSize-style.MinFontSize)*frac

		for ; size >= style.MinFontSize; size *= shrinkFactor {
			w, h := faces.measure(c.Word, size)
			box, ok := findSpot(bounds, taken, w, h)
			if !ok {
				continue
			}
			taken = append(taken, box.Inset(-wordPadding))
			var ink color.Color = color.Black
			if len(style.Palette) > 0 {
				ink = style.Palette[i%len(style.Palette)]
			}
			placed = append(placed, placedWord{Word: c.Word, Size: size, Box: box, Color: ink})
			break
		}
	}
	return placed
}

// findSpot walks an elliptical spiral out from the center and returns the
// first w x h box inside bounds that overlaps nothing taken.
func findSpot(bounds image.Rectangle, taken []image.Rectangle, w, h int) (image.Rectangle, bool) {
	if w > bounds.Dx() || h > bounds.Dy() {
		return image.Rectangle{}, false
	}

	cx, cy := bounds.Dx()/2, bounds.Dy()/2
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	// x is stretched by aspect, so the corners sit at this radius
	limit := math.Hypot(float64(cy), float64(cy))

	for t := 0.0; ; {
		r := spiralSpacing * t
		if r > limit {
			return image.Rectangle{}, false
		}
		x := cx + int(r*math.Cos(t)*aspect) - w/2
		y := cy + int(r*math.Sin(t)) - h/2
		box := image.Rect(x, y, x+w, y+h)
		if box.In(bounds) && !overlapsAny(box, taken) {
			return box, true
		}
		t += math.Min(0.5, spiralStep/(r+1))
	}
}

func overlapsAny(box image.Rectangle, taken []image.Rectangle) bool {
	for _, t := range taken {
		if box.Overlaps(t) {
			return true
		}
	}
	return false
}
