package processor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adverant/nexus/cardsort-worker/internal/errors"
)

// Accepted layouts:
//
//	inline   SETNUM | SET NUM | SET-NUM | SET/NUM   e.g. SET042, MH3 102A, ABC - 042
//	printed  NUM[/TOTAL][ RARITY] <newline> SET[ LANG[ ARTIST]]
//	         e.g. 0102/0280 R, MH3 EN JOHN AVON
//
// SET is three characters from A-Z0-9 with at least one letter. NUM is one
// to four digits; only the inline layout accepts a one-letter variant
// suffix. The inline separator may carry a space on either side. In the
// compact inline layout, a set code containing a digit must be followed by
// at least three digits so that "XX12" is not read as XX1 #2.
//
// LANG is two letters. ARTIST is the credit modern frames print after the
// language: two or more letter-only words. It is accepted only after LANG
// and never contributes to the locator.
var (
	inlinePattern      = regexp.MustCompile(`^([A-Z0-9]{3})( ?[/-]? ?)([0-9]{1,4})([A-Z]?)$`)
	printedNumberLine  = regexp.MustCompile(`^([0-9]{1,4})(?:/[0-9]{1,4})?(?: [CURMSTLP])?$`)
	printedSetLine     = regexp.MustCompile(`^([A-Z0-9]{3})(?: [A-Z]{2}(?: [A-Z]+(?: [A-Z]+)+)?)?$`)
	collectorToken     = regexp.MustCompile(`^[0-9]{1,4}[A-Z]?$`)
	languageToken      = regexp.MustCompile(`^[A-Z]{2}$`)
	leadingLettersRun  = regexp.MustCompile(`^[A-Z]+`)
	minCompactDigitSet = 3
)

// ParseLocator extracts the set code and collector number from recognized text
func ParseLocator(text *RecognizedText) (CardLocator, error) {
	if text.Empty() {
		return CardLocator{}, errors.NewParseError("", "no text to parse")
	}
	return parseLines(text.Text(), text.Lines)
}

// ParseLocatorString parses a raw line-broken string with the same grammar
func ParseLocatorString(s string) (CardLocator, error) {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return CardLocator{}, errors.NewParseError(s, "no text to parse")
	}
	return parseLines(s, lines)
}

func parseLines(raw string, rawLines []string) (CardLocator, error) {
	lines := make([]string, len(rawLines))
	for i, l := range rawLines {
		lines[i] = strings.Join(strings.Fields(strings.ToUpper(l)), " ")
	}

	switch len(lines) {
	case 1:
		return parseInline(raw, lines[0])
	case 2:
		return parsePrinted(raw, lines[0], lines[1])
	default:
		return CardLocator{}, errors.NewParseError(raw,
			fmt.Sprintf("expected 1 or 2 lines of text, got %d", len(lines)))
	}
}

func parseInline(raw, line string) (CardLocator, error) {
	m := inlinePattern.FindStringSubmatch(line)
	if m == nil {
		return CardLocator{}, errors.NewParseError(raw, diagnoseInline(line))
	}

	setCode, sep, number, suffix := m[1], m[2], m[3], m[4]
	if !hasLetter(setCode) {
		return CardLocator{}, errors.NewParseError(raw, fmt.Sprintf("no set code in %q", line))
	}
	if sep == "" && hasDigit(setCode) && len(number) < minCompactDigitSet {
		return CardLocator{}, errors.NewParseError(raw, ambiguousCompact(line, setCode, number))
	}

	return CardLocator{
		SetCode:         setCode,
		CollectorNumber: number + strings.ToLower(suffix),
	}, nil
}

func parsePrinted(raw, numberLine, setLine string) (CardLocator, error) {
	nm := printedNumberLine.FindStringSubmatch(numberLine)
	if nm == nil {
		return CardLocator{}, errors.NewParseError(raw,
			fmt.Sprintf("collector number line %q not recognized", numberLine))
	}

	sm := printedSetLine.FindStringSubmatch(setLine)
	if sm == nil || !hasLetter(sm[1]) {
		return CardLocator{}, errors.NewParseError(raw, diagnoseSetLine(setLine))
	}

	return CardLocator{SetCode: sm[1], CollectorNumber: nm[1]}, nil
}

// diagnoseInline explains why an inline line failed so operators can tell
// a lighting problem from a misaligned ROI
func diagnoseInline(line string) string {
	switch {
	case !hasLetter(line):
		return fmt.Sprintf("no set code in %q", line)
	case !hasDigit(line):
		return fmt.Sprintf("no collector number in %q", line)
	}

	parts := strings.FieldsFunc(line, isSeparator)
	first := parts[0]
	if !hasLetter(first) {
		return fmt.Sprintf("text %q does not start with a set code", line)
	}
	if r := letterCountReason(first); r != "" {
		return r
	}

	setCode, rest := first, parts[1:]
	if len(first) > 3 {
		setCode = first[:3]
		rest = append([]string{first[3:]}, rest...)
	}
	if len(setCode) < 3 {
		return fmt.Sprintf("set code %q has %d character(s), expected 3", setCode, len(setCode))
	}

	switch {
	case len(rest) == 0:
		return fmt.Sprintf("no collector number after set code %q", setCode)
	case !collectorToken.MatchString(rest[0]):
		return fmt.Sprintf("collector number %q after set code %q is not 1 to 4 digits", rest[0], setCode)
	case len(rest) == 1:
		return fmt.Sprintf("separator between set code %q and collector number %q is not one of space, / or -", setCode, rest[0])
	}
	return fmt.Sprintf("set code %q and collector number %q are valid but %q follows them",
		setCode, rest[0], strings.Join(rest[1:], " "))
}

// diagnoseSetLine explains why the second printed line failed
func diagnoseSetLine(line string) string {
	parts := strings.Fields(line)
	first := parts[0]
	if r := letterCountReason(first); r != "" {
		return r
	}
	if len(first) != 3 || !hasLetter(first) {
		return fmt.Sprintf("set code line %q does not start with a set code", line)
	}

	rest := parts[1:]
	if len(rest) > 0 && languageToken.MatchString(rest[0]) {
		return fmt.Sprintf("unexpected trailing text %q after set code %q and language %q (an artist credit is two or more words)",
			strings.Join(rest[1:], " "), first, rest[0])
	}
	return fmt.Sprintf("unexpected trailing text %q after set code %q", strings.Join(rest, " "), first)
}

func ambiguousCompact(line, setCode, number string) string {
	reading := fmt.Sprintf("reading %q as %s #%s needs at least %d digits", line, setCode, number, minCompactDigitSet)
	if r := letterCountReason(line); r != "" {
		return r + "; " + reading
	}
	return reading
}

// letterCountReason reports a wrong-length set code for tokens that lead
// with letters: purely alphabetic tokens, letter runs longer than a set
// code, and "XX12"-style compact tokens. A three-character token with a
// digit is a valid [A-Z0-9]{3} code and gets no reason here.
func letterCountReason(token string) string {
	run := leadingLettersRun.FindString(token)
	switch {
	case run == "":
		return ""
	case len(run) > 3:
		return fmt.Sprintf("set code %q has %d letters, expected 3", run, len(run))
	case len(run) < 3 && (run == token || shortRunThenNumber(token, run)):
		return fmt.Sprintf("set code %q has only %d letter(s)", run, len(run))
	}
	return ""
}

// shortRunThenNumber reports whether token is longer than a set code and
// is the letter run followed only by fewer than minCompactDigitSet digits
func shortRunThenNumber(token, run string) bool {
	digits := token[len(run):]
	return len(token) > 3 && len(digits) < minCompactDigitSet && !hasLetter(digits)
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '/' || r == '-'
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}
