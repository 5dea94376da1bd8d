package models

// DocumentStatus represents the refresh status of a source in the database
type DocumentStatus string

const (
	DocumentStatusUnset    DocumentStatus = ""          // Zero value = unset/unknown
	DocumentStatusSuccess  DocumentStatus = "success"   // Outline stored from the latest fetch
	DocumentStatusFailure  DocumentStatus = "failure"   // Latest refresh failed
	DocumentStatusNotFound DocumentStatus = "not_found" // Source not in database
	DocumentStatusDBError  DocumentStatus = "db_error"  // Database error occurred
)

// String implements fmt.Stringer for logging
func (s DocumentStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status can be persisted
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusSuccess, DocumentStatusFailure:
		return true
	}
	return false
}
