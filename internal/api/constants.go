package api

// Cache-Control header values.
const (
	CacheOneHour = "public, max-age=3600"
	CacheNoStore = "no-cache"
)

// Unavailable feature messages.
const (
	msgPDFServiceUnavailable = "PDF service not available"
	msgCitationUnavailable   = "Citation system not available"
	msgSearchUnavailable     = "Search index not available"
	msgProcessFailed         = "Failed to start processing"
)
