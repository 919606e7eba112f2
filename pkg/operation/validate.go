package operation

import "regexp"

const maxIDLength = 100

var (
	// lowerIDRe matches a lowercase NuGet package id.
	lowerIDRe = regexp.MustCompile(`^[a-z0-9_]+([.-][a-z0-9_]+)*$`)

	// normalizedVersionRe matches a lowercase, normalized NuGet version:
	// three numeric parts without leading zeros, an optional non-zero fourth
	// part, an optional prerelease label and no build metadata.
	normalizedVersionRe = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(\.[1-9][0-9]*)?(-[0-9a-z-]+(\.[0-9a-z-]+)*)?$`)
)

// IsLowerID reports whether id is a well-formed lowercase package id.
func IsLowerID(id string) bool {
	return len(id) <= maxIDLength && lowerIDRe.MatchString(id)
}

// IsNormalizedVersion reports whether v is a lowercase normalized version
// as used in PackageBaseAddress URLs.
func IsNormalizedVersion(v string) bool {
	return normalizedVersionRe.MatchString(v)
}
