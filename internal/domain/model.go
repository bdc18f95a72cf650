package domain

import "time"

// Core domain models shared by the services and adapters. Transport types
// live next to their adapter; keep these free of encoding concerns where
// possible.

// Status is the verification state of a stored scan.
type Status string

const (
	StatusUnverified Status = "Unverified"
	StatusConfirmed  Status = "Confirmed"
	StatusRejected   Status = "Rejected"
)

// ErrorKind names the first rule a submission violated.
type ErrorKind string

const (
	MissingField       ErrorKind = "MissingField"
	BadFormat          ErrorKind = "BadFormat"
	DuplicateValue     ErrorKind = "DuplicateValue"
	UnresolvedCode     ErrorKind = "UnresolvedCode"
	VerificationFailed ErrorKind = "VerificationFailed"
)

// ItemCode is a canonical item-type code such as SK-001.
type ItemCode string

type FieldValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScanRecord is one accepted row of a category table. Fields are immutable
// after append; only Status and Detail move.
type ScanRecord struct {
	ID        string       `json:"id"`
	Category  string       `json:"category"`
	Fields    []FieldValue `json:"fields"`
	Code      string       `json:"code,omitempty"`
	ItemCode  ItemCode     `json:"item_code,omitempty"`
	Status    Status       `json:"status"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Value returns the value stored for field, or "" when absent.
func (r ScanRecord) Value(field string) string {
	for _, f := range r.Fields {
		if f.Name == field {
			return f.Value
		}
	}
	return ""
}

// FieldRule is the declarative constraint for one field.
type FieldRule struct {
	Required       bool   `yaml:"required" json:"required"`
	ExactLength    int    `yaml:"exact_length" json:"exact_length,omitempty"`
	RequiredPrefix string `yaml:"required_prefix" json:"required_prefix,omitempty"`
	Digits         bool   `yaml:"digits" json:"digits,omitempty"`
	Unique         bool   `yaml:"unique" json:"unique"`
	// SkipChecksWhenEmpty exempts an empty optional value from the
	// length, prefix and digit checks.
	SkipChecksWhenEmpty bool `yaml:"skip_checks_when_empty" json:"skip_checks_when_empty"`
}

type FieldSpec struct {
	Name string    `yaml:"name" json:"name"`
	Rule FieldRule `yaml:",inline" json:"rule"`
}

// ReconcileSpec marks a category whose codes are resolved to item codes
// and confirmed against the shipment lookup.
type ReconcileSpec struct {
	TrackingField string `yaml:"tracking_field" json:"tracking_field"`
	CodeField     string `yaml:"code_field" json:"code_field"`
	SerialField   string `yaml:"serial_field" json:"serial_field,omitempty"`
}

type Category struct {
	Name      string         `yaml:"name" json:"name"`
	Fields    []FieldSpec    `yaml:"fields" json:"fields"`
	Reconcile *ReconcileSpec `yaml:"reconcile,omitempty" json:"reconcile,omitempty"`
}

// FieldNames returns the field names in declaration order.
func (c Category) FieldNames() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

type ValidationOutcome struct {
	OK     bool
	Reason ErrorKind
}

// PipelineOutcome is what a submission returns to the UI. Record is the
// first appended record; reconciliation submissions may append two.
type PipelineOutcome struct {
	Accepted      bool         `json:"accepted"`
	RejectedField string       `json:"rejected_field,omitempty"`
	Reason        ErrorKind    `json:"reason,omitempty"`
	Message       string       `json:"message,omitempty"`
	Record        *ScanRecord  `json:"record,omitempty"`
	Records       []ScanRecord `json:"records,omitempty"`
}

// LookupFailure classifies why a verification did not confirm.
type LookupFailure string

const (
	FailureNone        LookupFailure = ""
	FailureNotFound    LookupFailure = "not_found"
	FailureCredentials LookupFailure = "credentials"
	FailureStatus      LookupFailure = "status"
	FailureEmpty       LookupFailure = "empty"
	FailureTransport   LookupFailure = "transport"
	FailureTimeout     LookupFailure = "timeout"
)

type VerificationOutcome struct {
	Confirmed bool          `json:"confirmed"`
	Detail    string        `json:"detail"`
	Failure   LookupFailure `json:"failure,omitempty"`
}
