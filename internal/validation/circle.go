package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	circleSlugRegex = regexp.MustCompile(`^[a-z0-9-]{3,40}$`)
	slugStripRegex  = regexp.MustCompile(`[^a-z0-9]+`)
)

var reservedCircleSlugs = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"auth":     {},
	"circles":  {},
	"feed":     {},
	"menu":     {},
	"metrics":  {},
	"new":      {},
	"settings": {},
	"ws":       {},
}

// ValidateCircleSlug validates circle slug format and reserved names.
func ValidateCircleSlug(slug string) error {
	if !circleSlugRegex.MatchString(slug) {
		return errors.New("slug must be 3-40 characters and contain only lowercase letters, numbers, and hyphens")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return errors.New("slug cannot start or end with a hyphen")
	}
	if _, exists := reservedCircleSlugs[slug]; exists {
		return errors.New("slug is reserved")
	}
	return nil
}

// Slugify derives a slug candidate from a circle name.
func Slugify(name string) string {
	s := slugStripRegex.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if len(s) > 40 {
		s = strings.TrimRight(s[:40], "-")
	}
	return s
}
