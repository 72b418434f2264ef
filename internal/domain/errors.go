package domain

import "errors"

var (
	ErrInvalidPhone       = errors.New("invalid phone number format, use +<digits>")
	ErrAlreadyProvisioned = errors.New("account is already logged in")
	ErrNoAccounts         = errors.New("no accounts found, create a session first")
	ErrAccountNotFound    = errors.New("this number is not logged in, create a session first")
	ErrNoActiveAccounts   = errors.New("no account has forwarding rules set up")
)
