package domain

// ArtifactKind names a persisted per-product pipeline output.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactFactSheet ArtifactKind = "factsheet"
	ArtifactAudit     ArtifactKind = "audit"
	ArtifactDrafts    ArtifactKind = "drafts"
	ArtifactVerifier  ArtifactKind = "verifier"
)
