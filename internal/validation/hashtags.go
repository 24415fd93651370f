package validation

import (
	"regexp"
	"strings"
)

var hashtagRegex = regexp.MustCompile(`#([\p{L}\p{N}_]{1,50})`)

// ExtractHashtags returns the distinct lower-cased hashtags of content in order of appearance.
func ExtractHashtags(content string) []string {
	matches := hashtagRegex.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
