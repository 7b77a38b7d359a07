package receiver

import "errors"

var (
	ErrAlreadyRunning = errors.New("circlebot/receiver: already running")
	ErrTokenRequired  = errors.New("circlebot/receiver: bot token required")
)
