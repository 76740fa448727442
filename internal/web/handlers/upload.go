package handlers

import (
	"errors"

	"github.com/portfolio-egg/egg/internal/web/request"
)

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, request.ErrFileTooLarge):
		return "is too large"
	case errors.Is(err, request.ErrFileEmpty):
		return "is empty"
	case errors.Is(err, request.ErrFileType):
		return "has an invalid content type"
	default:
		return "could not be read"
	}
}
