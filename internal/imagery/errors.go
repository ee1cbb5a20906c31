package imagery

import "errors"

var (
	ErrUnknownSatellite   = errors.New("unknown satellite")
	ErrUnknownBand        = errors.New("band not available for satellite")
	ErrUnknownFrequency   = errors.New("unknown date range frequency")
	ErrUnknownReducer     = errors.New("unknown reducer")
	ErrUnknownOrbit       = errors.New("unknown orbit direction")
	ErrNotEnoughPoints    = errors.New("at least three points are required to generate a valid ROI")
	ErrMissingRegion      = errors.New("either a region or points must be provided")
	ErrUnknownSite        = errors.New("unknown site")
	ErrEmptyCollection    = errors.New("collection is empty for the requested range")
	ErrTaskFailed         = errors.New("export task failed")
	ErrTaskCancelled      = errors.New("export task was cancelled")
	ErrTaskStarted        = errors.New("export task already started")
	ErrMissingCredential  = errors.New("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	ErrCredentialCount    = errors.New("mismatched number of client IDs and secrets")
	ErrUnauthorized       = errors.New("unauthorized access, check your client ID and secret")
	ErrEmptyResponse      = errors.New("imagery service returned an empty image")
	ErrUnsupportedProduct = errors.New("unsupported export product")
)
