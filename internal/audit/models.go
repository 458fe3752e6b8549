package audit

import "time"

// Action names a certificate lifecycle event.
type Action string

const (
	ActionCertificateIssued          Action = "certificate_issued"
	ActionCertificateAnchoringFailed Action = "certificate_anchoring_failed"
	ActionCertificateVerified        Action = "certificate_verified"
	ActionAddressCacheCleared        Action = "address_cache_cleared"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	// Subject is the external certificate id the event is about.
	Subject   string `json:"subject"`
	ActorID   string `json:"actorId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
