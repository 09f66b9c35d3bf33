package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a RepoError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *RepoError {
	if err == nil {
		return nil
	}

	// Keep the path of an inner RepoError so callers still see which file failed
	var re *RepoError
	if errors.As(err, &re) {
		return &RepoError{
			Type:    errType,
			Code:    code,
			Message: message,
			Path:    re.Path,
			Cause:   re,
		}
	}

	return &RepoError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *RepoError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, message string) *RepoError {
	return Wrap(err, ErrorTypeInternal, CodeInternal, message)
}
