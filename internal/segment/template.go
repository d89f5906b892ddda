package segment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NumberPlaceholder is the template identifier replaced by a segment number.
const NumberPlaceholder = "$Number$"

var (
	templateIdentifier = regexp.MustCompile(`\$\$|\$Number(?:%0(\d+)d)?\$`)
	lastInteger        = regexp.MustCompile(`\d+`)
)

// ExpandTemplate substitutes number into every $Number$ or $Number%0Nd$
// identifier of template. "$$" is an escaped dollar sign.
func ExpandTemplate(template string, number int64) string {
	return templateIdentifier.ReplaceAllStringFunc(template, func(id string) string {
		if id == "$$" {
			return "$"
		}
		m := templateIdentifier.FindStringSubmatch(id)
		if m[1] == "" {
			return strconv.FormatInt(number, 10)
		}
		width, err := strconv.Atoi(m[1])
		if err != nil {
			return strconv.FormatInt(number, 10)
		}
		return fmt.Sprintf("%0*d", width, number)
	})
}

// InferTemplate turns a concrete segment URI into a template by replacing its
// last integer token with a number identifier. Leading zeros are kept as a
// width format. It returns false when uri contains no digits.
func InferTemplate(uri string) (string, bool) {
	locs := lastInteger.FindAllStringIndex(uri, -1)
	if len(locs) == 0 {
		return "", false
	}

	loc := locs[len(locs)-1]
	token := uri[loc[0]:loc[1]]

	id := NumberPlaceholder
	if len(token) > 1 && token[0] == '0' {
		id = fmt.Sprintf("$Number%%0%dd$", len(token))
	}

	escaped := strings.ReplaceAll(uri[:loc[0]], "$", "$$") + id + strings.ReplaceAll(uri[loc[1]:], "$", "$$")
	return escaped, true
}
