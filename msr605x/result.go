package msr605x

import "github.com/samuelequaranta/go-msr605x/track"

// Result is the outcome of one command invocation. A fresh value is
// produced per call and never reused; it is safe to hand across
// goroutines.
type Result struct {
	OK      bool
	Code    Code
	Message string

	// Optional payload, populated per operation.
	Tracks   []track.Data
	Firmware string
	Model    string
}

func success(msg string) *Result {
	return &Result{OK: true, Code: CodeOK, Message: msg}
}

func failure(code Code, msg string) *Result {
	return &Result{Code: code, Message: msg}
}

func failureErr(err error) *Result {
	return &Result{Code: codeForError(err), Message: err.Error()}
}
