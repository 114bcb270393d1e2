// internal/model/event.go
package model

import "time"

// EventType names a tenant mutation published by the provisioning side.
type EventType string

const (
	EventStatusChanged EventType = "tenant.status_changed"
	EventDomainChanged EventType = "tenant.domain_changed"
	EventUpdated       EventType = "tenant.updated"
	EventDeleted       EventType = "tenant.deleted"
)

// TenantEvent is the message body carried on the tenant events queue.
type TenantEvent struct {
	Type              EventType `json:"type"`
	TenantID          string    `json:"tenant_id"`
	Subdomain         string    `json:"subdomain,omitempty"`
	CustomDomain      string    `json:"custom_domain,omitempty"`
	PreviousSubdomain string    `json:"previous_subdomain,omitempty"`
	PreviousDomain    string    `json:"previous_domain,omitempty"`
	Status            Status    `json:"status,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}
