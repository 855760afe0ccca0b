package domain

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrValidation   = errors.New("validation error")
	ErrUnbound      = errors.New("connection is not bound to a participant")
)
