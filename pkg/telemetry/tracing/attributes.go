package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys.
const (
	AttrBuildID   = "claimforge.build.id"
	AttrKind      = "claimforge.edit.kind"
	AttrRows      = "claimforge.edit.rows"
	AttrFiles     = "claimforge.edit.files"
	AttrClaimID   = "claimforge.claim.id"
	AttrCodes     = "claimforge.claim.procedures"
	AttrRiskScore = "claimforge.claim.risk_score"
	AttrValid     = "claimforge.claim.valid"
)

// Kind returns the edit kind attribute.
func Kind(kind string) attribute.KeyValue {
	return attribute.String(AttrKind, kind)
}

// BuildID returns the build ID attribute.
func BuildID(id string) attribute.KeyValue {
	return attribute.String(AttrBuildID, id)
}
