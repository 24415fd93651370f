package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Field names a kind of user-entered text with its own limits.
type Field string

const (
	FieldPost              Field = "post"
	FieldComment           Field = "comment"
	FieldConfession        Field = "confession"
	FieldConfessionComment Field = "confession_comment"
	FieldPollQuestion      Field = "poll_question"
	FieldPollOption        Field = "poll_option"
	FieldMessage           Field = "message"
	FieldBio               Field = "bio"
	FieldDisplayName       Field = "display_name"
	FieldUsername          Field = "username"
	FieldCircleName        Field = "circle_name"
	FieldCircleDescription Field = "circle_description"
	FieldListingTitle      Field = "listing_title"
	FieldListingBody       Field = "listing_description"
	FieldStoryCaption      Field = "story_caption"
	FieldSearch            Field = "search"
	FieldCollectionName    Field = "collection_name"
)

type fieldRule struct {
	max        int
	required   bool
	singleLine bool
	lower      bool
	validate   func(string) error
}

var fieldRules = map[Field]fieldRule{
	FieldPost:              {max: 2000, required: true},
	FieldComment:           {max: 500, required: true},
	FieldConfession:        {max: 1000, required: true},
	FieldConfessionComment: {max: 500, required: true},
	FieldPollQuestion:      {max: 200, required: true, singleLine: true},
	FieldPollOption:        {max: 100, required: true, singleLine: true},
	FieldMessage:           {max: 2000, required: true},
	FieldBio:               {max: 160},
	FieldDisplayName:       {max: 50, required: true, singleLine: true},
	FieldUsername:          {max: 30, required: true, singleLine: true, lower: true, validate: ValidateUsername},
	FieldCircleName:        {max: 60, required: true, singleLine: true},
	FieldCircleDescription: {max: 500},
	FieldListingTitle:      {max: 100, required: true, singleLine: true},
	FieldListingBody:       {max: 1000},
	FieldStoryCaption:      {max: 200},
	FieldSearch:            {max: 100, singleLine: true},
	FieldCollectionName:    {max: 60, required: true, singleLine: true},
}

var (
	scriptBlockRegex = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)\s*>`)
	tagRegex         = regexp.MustCompile(`(?s)</?[a-zA-Z!][^>]*>`)
	schemeRegex      = regexp.MustCompile(`(?i)(javascript|vbscript)\s*:|data\s*:\s*text/html`)
	blankLinesRegex  = regexp.MustCompile(`\n([ \t]*\n){2,}`)
	spacesRegex      = regexp.MustCompile(`[ \t]{2,}`)
	searchStripper   = strings.NewReplacer(",", " ", "(", " ", ")", " ", "*", " ", ":", " ", `"`, " ", "'", " ", ";", " ", `\`, " ")
	likeEscaper      = strings.NewReplacer("%", `\%`, "_", `\_`)
)

// Error reports why a field was rejected.
type Error struct {
	Field  Field
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// MaxLength returns the rune limit of a field, 0 when unknown.
func MaxLength(field Field) int {
	return fieldRules[field].max
}

// Sanitize cleans raw for storage under field: control characters (except newline
// and tab), script blocks, HTML tags and script URL schemes are removed, runs of
// blank lines collapse to one, and the result is cut to the field limit in runes.
// An error is returned only for an empty required field or a failed pattern.
func Sanitize(field Field, raw string) (string, error) {
	rule, ok := fieldRules[field]
	if !ok {
		return "", &Error{Field: field, Reason: "unknown field"}
	}

	s := stripMarkup(stripControl(strings.ReplaceAll(raw, "\r\n", "\n")))
	if rule.singleLine {
		s = strings.Join(strings.Fields(s), " ")
	} else {
		s = spacesRegex.ReplaceAllString(s, " ")
		s = blankLinesRegex.ReplaceAllString(s, "\n\n")
	}
	s = strings.TrimSpace(s)
	if rule.lower {
		s = strings.ToLower(s)
	}
	s = truncateRunes(s, rule.max)

	if s == "" {
		if rule.required {
			return "", &Error{Field: field, Reason: "must not be empty"}
		}
		return "", nil
	}
	if rule.validate != nil {
		if err := rule.validate(s); err != nil {
			return "", &Error{Field: field, Reason: err.Error()}
		}
	}
	return s, nil
}

// SanitizeSearch prepares a search term for use inside an ILIKE ... ESCAPE '\'
// pattern: characters with meaning in filter expressions are removed and the LIKE
// wildcards are escaped so they match literally.
func SanitizeSearch(raw string) string {
	s, _ := Sanitize(FieldSearch, raw)
	s = strings.Join(strings.Fields(searchStripper.Replace(s)), " ")
	return likeEscaper.Replace(s)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

// stripMarkup repeats until stable so split payloads like "<scr<b>ipt>" do not
// reassemble into markup.
func stripMarkup(s string) string {
	for i := 0; i < 8; i++ {
		next := scriptBlockRegex.ReplaceAllString(s, "")
		next = tagRegex.ReplaceAllString(next, "")
		next = schemeRegex.ReplaceAllString(next, "")
		if next == s {
			break
		}
		s = next
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
