package securestore

import "errors"

var (
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher text must not be null")
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher text is not a valid envelope")
	// ErrAuthFailed is returned when the passphrase does not open the envelope.
	ErrAuthFailed = errors.New("wrong passphrase or corrupted cypher text")
)
