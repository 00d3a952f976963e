package service

import "errors"

var (
	ErrNotFound       = errors.New("error not found")
	ErrInvalidTrade   = errors.New("error invalid trade")
	ErrSyncInProgress = errors.New("error sync already in progress")
)
