// Package identity derives the stable keys that the coordinator dedupes on.
// All functions are pure: same request in, same key out, no I/O.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"encore.app/reports/model"
)

const (
	// fieldSeparator keeps adjacent fields from gluing into ambiguous
	// concatenations ("ab"+"c" vs "a"+"bc").
	fieldSeparator = "\x1f"

	// coordinatePrecision rounds latitude/longitude to 4 decimal places,
	// roughly 11 m at the equator. Float noise below that must not
	// fragment the cache.
	coordinatePrecision = 4

	keyLength = 32
)

// DeriveIdempotencyKey returns the deterministic identity of a logical
// request. Two requests that differ only in case, surrounding whitespace,
// or sub-precision coordinate noise map to the same key.
func DeriveIdempotencyKey(req *model.GenerationRequest) string {
	fields := []string{
		normalize(req.Name),
		normalize(req.DateOfBirth),
		normalize(req.TimeOfBirth),
		normalize(req.Place),
		normalizeCoordinate(req.Latitude),
		normalizeCoordinate(req.Longitude),
		normalize(req.ArtifactType),
		normalize(req.TargetPeriod),
		normalize(req.RetryNonce),
	}
	return digest(fields)
}

// DeriveCacheKey is the coarser key used for TTL-based result reuse. It
// omits the retry nonce: a retried request wants a fresh execution, but the
// content it produces is interchangeable with the original's.
func DeriveCacheKey(req *model.GenerationRequest) string {
	fields := []string{
		normalize(req.Name),
		normalize(req.DateOfBirth),
		normalize(req.TimeOfBirth),
		normalize(req.Place),
		normalizeCoordinate(req.Latitude),
		normalizeCoordinate(req.Longitude),
		normalize(req.ArtifactType),
		normalize(req.TargetPeriod),
	}
	return digest(fields)
}

// ActorIdentity derives the budget-tracking actor for a request. It prefers
// stable contact identity, falls back to subject fields, and finally to a
// random identity for anonymous callers. The random fallback means no
// cross-request budget tracking for that caller, which is acceptable
// degraded behavior.
func ActorIdentity(req *model.GenerationRequest) string {
	if email := normalize(req.Email); email != "" {
		return digest([]string{"actor", email})
	}
	name := normalize(req.Name)
	dob := normalize(req.DateOfBirth)
	if name != "" && dob != "" {
		return digest([]string{"actor", name, dob})
	}
	return uuid.NewString()
}

// NormalizeEmail applies the same normalization used in key derivation, for
// allowlist comparison at the policy boundary.
func NormalizeEmail(email string) string {
	return normalize(email)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeCoordinate(v float64) string {
	if v == 0 {
		return ""
	}
	shift := math.Pow10(coordinatePrecision)
	rounded := math.Round(v*shift) / shift
	return strconv.FormatFloat(rounded, 'f', coordinatePrecision, 64)
}

func digest(fields []string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, fieldSeparator)))
	return hex.EncodeToString(sum[:])[:keyLength]
}
