package domain

import "errors"

var (
	// ErrThreadNotFound is returned by mailboxes when a thread vanished
	// between fetch and label update.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrRowNotFound is returned by tracker tables for an unknown location.
	ErrRowNotFound = errors.New("row not found")
)
