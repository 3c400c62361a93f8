package calendar

import "errors"

var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("calendar event not found")
	ErrTaskNotFound = errors.New("task not found")
)
