// Package pipeline turns a triggering chat message into a circular sticker.
//
// A run walks a fixed sequence of stages:
//
//	trigger -> resolve -> extract -> mask -> dispatch
//
// The trigger stage is a pure keyword check and runs before any I/O. Resolve
// picks the quoted message when there is one and downloads its media. Extract
// normalizes the media to a single still image on disk, running ffmpeg for
// videos. Mask crops the still to its inscribed circle and reads the PNG back
// into memory. Temp files are released before dispatch sends the sticker and
// a confirmation text.
//
// # Outcomes
//
// Run returns a Result and an error. Messages the pipeline deliberately
// ignores (no keyword, no media, unsupported kind or video MIME) end with
// OutcomeNoOp and a nil error; the reason is logged and counted in Stats.
// Every other failure is a *StageError that matches one of ErrFetch,
// ErrExtraction, ErrDecode, ErrWrite or ErrDelivery with errors.Is.
//
// # Messaging
//
// The pipeline knows nothing about a concrete chat network. It consumes the
// Message interface; package telegram provides the Telegram implementation.
package pipeline
