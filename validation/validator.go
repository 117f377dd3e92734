package validation

import (
	"fmt"
	"public-feed/errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultMaxAuthorLength = 50
	DefaultMaxBodyLength   = 500
)

var validate = validator.New()

// Result holds the trimmed fields that passed validation.
type Result struct {
	Author string
	Body   string
}

// Validator enforces the structural rules of a message before any other stage runs.
// Lengths are counted in code points once leading and trailing whitespace is removed.
type Validator struct {
	authorTag string
	bodyTag   string
}

func NewValidator(maxAuthorLength, maxBodyLength int) Validator {
	return Validator{
		authorTag: fmt.Sprintf("max=%d", maxAuthorLength),
		bodyTag:   fmt.Sprintf("max=%d", maxBodyLength),
	}
}

func (v Validator) Validate(author, body string, hasMedia bool) (Result, error) {
	// The wire decoder does not check strings, lengths below count runes.
	if !utf8.ValidString(author) || !utf8.ValidString(body) {
		return Result{}, errors.ErrInvalidText
	}
	author = strings.TrimSpace(author)
	body = strings.TrimSpace(body)

	if err := validate.Var(author, "required"); err != nil {
		return Result{}, errors.ErrMissingAuthor
	}
	if !hasMedia {
		if err := validate.Var(body, "required"); err != nil {
			return Result{}, errors.ErrEmptyMessage
		}
	}
	if err := validate.Var(author, v.authorTag); err != nil {
		return Result{}, errors.ErrAuthorTooLong
	}
	if err := validate.Var(body, v.bodyTag); err != nil {
		return Result{}, errors.ErrBodyTooLong
	}
	return Result{Author: author, Body: body}, nil
}
