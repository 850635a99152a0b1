package domain

import "errors"

var (
	ErrRecordNotFound   = errors.New("user record not found")
	ErrNoEmail          = errors.New("no email address associated with this account")
	ErrNoPanelAccount   = errors.New("no panel account linked")
	ErrPanelUnavailable = errors.New("panel unavailable")
	ErrUnknownProvider  = errors.New("unknown identity provider")
)
