// Package i18n declares the languages the service supports and matches
// client-provided tags against them.
package i18n

import "golang.org/x/text/language"

var (
	defaultTag = language.MustParse("en-US")
	supported  = []language.Tag{defaultTag, language.MustParse("pt-BR")}
	matcher    = language.NewMatcher(supported)
)

// SupportedTags returns the supported language tags, default first.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supported))
	copy(tags, supported)
	return tags
}

// DefaultTag returns the fallback language tag.
func DefaultTag() language.Tag {
	return defaultTag
}

// ParseTag parses value and reports whether it resolves to a supported
// language with high confidence. The returned tag is always one of
// SupportedTags.
func ParseTag(value string) (language.Tag, bool) {
	tag, err := language.Parse(value)
	if err != nil {
		return language.Tag{}, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return language.Tag{}, false
	}
	return supported[idx], true
}

// MatchTags picks the best supported language for an ordered preference
// list, falling back to the default.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return defaultTag
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}
