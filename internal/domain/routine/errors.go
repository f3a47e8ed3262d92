package routine

import "errors"

var (
	ErrRoutineNotFound = errors.New("routine not found")
	ErrInvalidType     = errors.New("routine type must be one of medication, meal, exercise, general")
	ErrNoItems         = errors.New("routine must contain at least one item")
)
