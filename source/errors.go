package source

import "errors"

var (
	errNotResettable          = errors.New("source: stream is not resettable; construct it with WithResettable to allow a streaming fallback to rewind it")
	errRemoteHasNoLocalReader = errors.New("source: a Remote source has no local reader; it already lives in blob storage")
)
