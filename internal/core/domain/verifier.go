package domain

// VerifierIssue is one problem raised by the verifier.
type VerifierIssue struct {
	// FieldPath locates the offending item, e.g. "key_specs[2]". Empty for
	// issues that are not tied to a single field.
	FieldPath string `json:"field_path,omitempty"`

	Message string `json:"message"`
}

// VerifierReport is the output of the verifier gate.
type VerifierReport struct {
	BlockedIssues    []VerifierIssue `json:"blocked_issues"`
	Warnings         []VerifierIssue `json:"warnings"`
	SuggestedQueries []string        `json:"suggested_queries"`
}

// HasBlocked returns true if any blocking issue was found.
func (r *VerifierReport) HasBlocked() bool {
	return r != nil && len(r.BlockedIssues) > 0
}

// Err returns a VerifierBlockedError when the report has blocking issues.
func (r *VerifierReport) Err() error {
	if !r.HasBlocked() {
		return nil
	}
	msgs := make([]string, len(r.BlockedIssues))
	for i, issue := range r.BlockedIssues {
		msgs[i] = issue.Message
	}
	return &VerifierBlockedError{Issues: msgs}
}
