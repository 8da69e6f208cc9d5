package main

import "errors"

var (
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrVariantOutOfRange = errors.New("variant index out of range")
	ErrImageOutOfRange   = errors.New("image index out of range")
	ErrNotGenerated      = errors.New("draft not generated")
	ErrRewriteInProgress = errors.New("rewrite in progress")
	ErrEmptySourceURL    = errors.New("source URL is empty")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidPhotoID    = errors.New("invalid photo id")
	ErrNoAccessToken     = errors.New("server returned no access token")
)
