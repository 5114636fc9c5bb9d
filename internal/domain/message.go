package domain

import "time"

// Message is a single email pulled from the mailbox.
type Message struct {
	ID        string
	ThreadID  string
	Subject   string
	Body      string
	From      string
	Timestamp time.Time
	Permalink string
}

// Thread groups the messages of one conversation as returned by the mailbox.
type Thread struct {
	ID       string
	Messages []Message
}
