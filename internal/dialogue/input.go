package dialogue

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// publicAddInput is the "@handle label" answer of the public add step.
type publicAddInput struct {
	Handle string `validate:"required,startswith=@,min=2,max=33"`
	Label  string `validate:"required,max=64"`
}

func parsePublicAdd(text string) (publicAddInput, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return publicAddInput{}, false
	}
	in := publicAddInput{Handle: fields[0], Label: fields[1]}
	if err := validate.Struct(in); err != nil {
		return publicAddInput{}, false
	}
	return in, true
}

// parseIndex parses a 1-based choice into a 0-based index within n items.
// ok is false for non-numbers; inRange is false for numbers outside 1..n.
func parseIndex(text string, n int) (idx int, ok, inRange bool) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false, false
	}
	if v < 1 || v > n {
		return 0, true, false
	}
	return v - 1, true, true
}
