package util

import "strings"

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

// ApplyKakaoSeeMorePadding folds text behind KakaoTalk's "See more" fold:
// instruction stays visible, the zero-width run pushes text below the fold.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	instruction = strings.TrimSpace(instruction)

	var b strings.Builder
	b.Grow(len(instruction) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(text) + 1)
	b.WriteString(instruction)
	b.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String()
}

// StripLeadingHeader drops header (and its line break) from the start of text.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" {
		return text
	}
	for _, sep := range []string{"\r\n\r\n", "\n\n", "\r\n", "\n", ""} {
		if strings.HasPrefix(text, header+sep) {
			return strings.TrimPrefix(text, header+sep)
		}
	}
	return text
}

// SeeMore moves a leading header line above the fold and pads the rest.
// Texts that do not start with header are folded under header+suffix anyway.
func SeeMore(text, header, suffix string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	instruction := strings.TrimSpace(header)
	if instruction != "" {
		instruction += suffix
	}
	return ApplyKakaoSeeMorePadding(StripLeadingHeader(text, header), instruction)
}
