package api

// Cache-Control header values.
const (
	CachePrivateOneHour = "private, max-age=3600"
	CacheNoStore        = "no-cache"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"
