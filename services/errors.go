package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed                  = errors.New("validation failed")
	ErrDisplayNameRequired               = errors.New("display name is required")
	ErrTournamentNameRequired            = errors.New("tournament name is required")
	ErrTournamentInvalidMode             = errors.New("invalid competitive mode")
	ErrTournamentInvalidArenaSlots       = errors.New("arena slots must not be negative")
	ErrTournamentInvalidStatus           = errors.New("invalid tournament status provided")
	ErrTournamentInvalidStatusTransition = errors.New("invalid tournament status transition")
	ErrRegistrationNotOpen               = errors.New("tournament registration is not open")
	ErrNotEnoughRegistrants              = errors.New("at least two submitted registrants are required to start")
	ErrBracketNotCreated                 = errors.New("tournament has no bracket yet")
	ErrEmptyBatch                        = errors.New("batch contains no names")

	// Ошибки конфликтов
	ErrRegistrantNameConflict = errors.New("a registrant with this name is already registered")
	ErrRegistrantConflict     = errors.New("registrant was already submitted")
	ErrStatusChanged          = errors.New("tournament status changed concurrently, reload and retry")

	// Ошибки аутентификации и авторизации
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidPasscode      = errors.New("invalid venue passcode")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current session")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRegistrantNotFound = errors.New("registrant not found")
)
