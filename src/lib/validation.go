package lib

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/theleywin/posts-api/src/models"
)

// PostValidator reports whether a post body is acceptable, with one message per offending field.
type PostValidator interface {
	Validate(input models.PostInput) (errors map[string]string, isValid bool)
}

// PostRules bounds the length of post text, counted in characters after trimming.
type PostRules struct {
	Min int
	Max int
}

func (r PostRules) Validate(input models.PostInput) (map[string]string, bool) {
	errors := map[string]string{}

	text := strings.TrimSpace(input.Text)
	length := utf8.RuneCountInString(text)

	if length == 0 {
		errors["text"] = "Text field is required"
	} else if length < r.Min || length > r.Max {
		errors["text"] = fmt.Sprintf("Post must be between %d and %d characters", r.Min, r.Max)
	}

	if input.Avatar != "" && !isHTTPURL(input.Avatar) {
		errors["avatar"] = "Avatar must be a valid URL"
	}

	return errors, len(errors) == 0
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
