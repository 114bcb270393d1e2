package tenancy

import "tenant-scope/internal/model"

// Outcome tags a Result. Exactly one applies.
type Outcome int

const (
	Resolved Outcome = iota + 1
	Failed
	Suspended
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Suspended:
		return "suspended"
	}
	return "unknown"
}

// FailureKind refines a Failed outcome.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureNoSignal means the request carried nothing to resolve from.
	FailureNoSignal
	// FailureNotFound means a lookup ran and matched no tenant.
	FailureNotFound
	// FailureInvalidStatus means the tenant exists in a non-active,
	// non-suspended state.
	FailureInvalidStatus
	// FailureInvalidAPIKey means an API key was sent and did not resolve.
	FailureInvalidAPIKey
	// FailureBackend means the directory could not be queried.
	FailureBackend
)

func (k FailureKind) String() string {
	switch k {
	case FailureNoSignal:
		return "no_signal"
	case FailureNotFound:
		return "not_found"
	case FailureInvalidStatus:
		return "invalid_status"
	case FailureInvalidAPIKey:
		return "invalid_api_key"
	case FailureBackend:
		return "backend"
	}
	return "none"
}

// Result is the outcome of one resolution.
type Result struct {
	Outcome Outcome
	Source  model.Source
	// Tenant is set only when Outcome is Resolved.
	Tenant *model.TenantContext
	// TenantID is set for Suspended so callers can log it.
	TenantID string
	Kind     FailureKind
	Reason   string
	Err      error
}

func resolved(tc *model.TenantContext, src model.Source) Result {
	return Result{Outcome: Resolved, Source: src, Tenant: tc}
}

func suspended(tenantID string, src model.Source) Result {
	return Result{
		Outcome:  Suspended,
		Source:   src,
		TenantID: tenantID,
		Reason:   "tenant is suspended",
	}
}

func failed(src model.Source, kind FailureKind, reason string, err error) Result {
	return Result{Outcome: Failed, Source: src, Kind: kind, Reason: reason, Err: err}
}
