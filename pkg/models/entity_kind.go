package models

import "strings"

// EntityKind identifies one of the five traceable entity kinds. The kind of
// an entity is never stored alongside references to it; it is always derived
// from the identifier prefix.
type EntityKind string

const (
	KindUserRequirement   EntityKind = "userRequirement"
	KindSystemRequirement EntityKind = "systemRequirement"
	KindRisk              EntityKind = "risk"
	KindTestCase          EntityKind = "testCase"
	KindTestResult        EntityKind = "testResult"

	// KindUnknown is returned for identifiers whose prefix is not
	// recognized. Callers must reject such identifiers before invoking any
	// operation that depends on the kind.
	KindUnknown EntityKind = ""
)

// Prefix returns the identifier prefix for the kind, without the dash.
func (k EntityKind) Prefix() string {
	switch k {
	case KindUserRequirement:
		return "UR"
	case KindSystemRequirement:
		return "SR"
	case KindRisk:
		return "RISK"
	case KindTestCase:
		return "TC"
	case KindTestResult:
		return "TRES"
	}
	return ""
}

// LifecycleBearing reports whether entities of this kind carry the
// draft/approved lifecycle. TestResult is derived and immutable.
func (k EntityKind) LifecycleBearing() bool {
	switch k {
	case KindUserRequirement, KindSystemRequirement, KindRisk, KindTestCase:
		return true
	}
	return false
}

// ResolveKind maps an identifier such as "UR-14" or "tres-9" to its entity
// kind. The prefix comparison is case-insensitive. Identifiers with an
// unrecognized prefix resolve to KindUnknown and must be rejected by the
// caller; there is no silent fallback.
func ResolveKind(id string) EntityKind {
	upper := strings.ToUpper(id)
	switch {
	case strings.HasPrefix(upper, "UR-"):
		return KindUserRequirement
	case strings.HasPrefix(upper, "SR-"):
		return KindSystemRequirement
	case strings.HasPrefix(upper, "RISK-"):
		return KindRisk
	case strings.HasPrefix(upper, "TC-"):
		return KindTestCase
	case strings.HasPrefix(upper, "TRES-"):
		return KindTestResult
	}
	return KindUnknown
}

// NormalizeID upper-cases the prefix portion of an identifier so that
// lookups are stable regardless of how the caller spelled it.
func NormalizeID(id string) string {
	i := strings.Index(id, "-")
	if i < 0 {
		return id
	}
	return strings.ToUpper(id[:i]) + id[i:]
}
