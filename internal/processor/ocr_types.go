/**
 * Pipeline types - data handed between identification stages
 *
 * Every value here lives for a single identify run only.
 */

package processor

import (
	"fmt"
	"image"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Rectangle is a region of interest in frame coordinates
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect converts to an image.Rectangle anchored at origin
func (r Rectangle) Rect(origin image.Point) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(origin)
}

func (r Rectangle) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.Width, r.Height, r.X, r.Y)
}

// ProcessedRegion is the cropped, grayscale, inverted ROI handed to OCR
type ProcessedRegion struct {
	Image *image.Gray
	ROI   Rectangle
}

// RecognizedText is OCR output restricted to an allow-list. Lines never
// contain characters outside AllowedChars.
type RecognizedText struct {
	Lines        []string
	AllowedChars string
	Engine       string
	Duration     time.Duration
}

// Text joins the recognized lines with line breaks
func (t *RecognizedText) Text() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Lines, "\n")
}

// Empty reports whether recognition produced no usable characters
func (t *RecognizedText) Empty() bool {
	return t == nil || len(t.Lines) == 0
}

// CardLocator identifies a printing by set code and collector number
type CardLocator struct {
	SetCode         string `json:"setCode"`
	CollectorNumber string `json:"collectorNumber"`
}

func (l CardLocator) String() string {
	return fmt.Sprintf("%s #%s", l.SetCode, l.CollectorNumber)
}

// CardIdentity is the resolved card handed to the sorter
type CardIdentity struct {
	Name            string `json:"name"`
	SetCode         string `json:"setCode"`
	SetName         string `json:"setName,omitempty"`
	CollectorNumber string `json:"collectorNumber"`
	Rarity          string `json:"rarity,omitempty"`
	Lang            string `json:"lang,omitempty"`
	TypeLine        string `json:"typeLine,omitempty"`
	ManaCost        string `json:"manaCost,omitempty"`
	ScryfallURI     string `json:"scryfallUri,omitempty"`
	CardID          string `json:"cardId,omitempty"`
	RunID           string `json:"runId"`
	RecognizedText  string `json:"recognizedText"`
}

// CharSet is the OCR allow-list
type CharSet struct {
	runes map[rune]struct{}
}

// NewCharSet builds an allow-list from the characters in s
func NewCharSet(s string) CharSet {
	cs := CharSet{runes: make(map[rune]struct{}, len(s))}
	for _, r := range s {
		cs.runes[r] = struct{}{}
	}
	return cs
}

// Contains reports whether r is allowed
func (cs CharSet) Contains(r rune) bool {
	_, ok := cs.runes[r]
	return ok
}

// Len returns the number of distinct allowed characters
func (cs CharSet) Len() int {
	return len(cs.runes)
}

// String returns the allowed characters sorted and deduplicated
func (cs CharSet) String() string {
	rs := make([]rune, 0, len(cs.runes))
	for r := range cs.runes {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return string(rs)
}

// Filter restricts raw OCR output to the allow-list. Lowercase letters are
// folded to uppercase when only the uppercase form is allowed. Line breaks
// separate lines; blank lines are dropped.
func (cs CharSet) Filter(raw string) []string {
	var lines []string
	for _, rawLine := range strings.Split(raw, "\n") {
		var b strings.Builder
		for _, r := range rawLine {
			if !cs.Contains(r) {
				u := unicode.ToUpper(r)
				if u == r || !cs.Contains(u) {
					continue
				}
				r = u
			}
			b.WriteRune(r)
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// NewRecognizedText filters raw engine output into a RecognizedText
func NewRecognizedText(engine string, raw string, allowed CharSet, duration time.Duration) *RecognizedText {
	return &RecognizedText{
		Lines:        allowed.Filter(raw),
		AllowedChars: allowed.String(),
		Engine:       engine,
		Duration:     duration,
	}
}
