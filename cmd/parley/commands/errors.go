package commands

import "errors"

var (
	errUserRequired       = errors.New("user id required (-u or user_id in config)")
	errPassphraseRequired = errors.New("passphrase required (-p or PARLEY_PASSPHRASE)")
)
