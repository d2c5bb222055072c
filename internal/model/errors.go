package model

import "errors"

var (
	// ErrNotFound is returned when a share (or another addressed record) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExpired is returned for a share that is still recorded but past its TTL.
	ErrExpired = errors.New("share expired")
	// ErrUnknownUser is returned when the acting user was never registered.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnknownOwner is returned when a share is created for an unregistered owner.
	ErrUnknownOwner = errors.New("unknown owner")
	// ErrFileNotFound is returned when a path resolves to no stored file.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileGone is returned when the file behind a live share vanished; the share is purged.
	ErrFileGone = errors.New("shared file is gone")
	// ErrUnauthorized is returned when a non-owner attempts an owner-only mutation.
	ErrUnauthorized = errors.New("not the owner")
	// ErrPersistence wraps failures to write the registry to durable storage.
	// The in-memory mutation that preceded it is kept.
	ErrPersistence = errors.New("registry persistence failed")
)
