package models

import "errors"

// Business outcomes shared by the storage and service layers.
// Absence is never one of these: lookups return a nil record instead.
// ErrRepositoryNotFound only reports a row that disappeared while it was
// being updated.
var (
	ErrDuplicateEmail         = errors.New("a user with this email already exists")
	ErrDuplicateName          = errors.New("the owner already has a repository with this name")
	ErrOwnerNotFound          = errors.New("owner not found")
	ErrConcurrentModification = errors.New("the record was modified concurrently")
	ErrRepositoryNotFound     = errors.New("repository not found")
)
