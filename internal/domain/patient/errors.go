package patient

import "errors"

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPatientAlreadyExists = errors.New("a patient with this email already exists")
	ErrPatientInactive      = errors.New("patient record is inactive")
)
