// Package metrics defines and registers all custom Prometheus metrics for the
// identity service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto; HTTP request metrics come from the
// echoprometheus middleware wired in the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "identity"

// ── Login metrics ─────────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Labels:
//   - flow: "credentialed" or "simple"
//   - result: "success", "invalid_credentials", "validation_error" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by flow and result.",
	},
	[]string{"flow", "result"},
)

// CredentialBootstrapsTotal counts one-time credential bootstraps.
// Label:
//   - result: "applied" (this login set the credential) or "lost_race"
var CredentialBootstrapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_bootstraps_total",
		Help:      "Total number of first-login credential bootstrap attempts.",
	},
	[]string{"result"},
)

// UsersProvisionedTotal counts accounts created, by the path that created them.
// Label:
//   - source: "simple_login" or "signup"
var UsersProvisionedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_provisioned_total",
		Help:      "Total number of user accounts created.",
	},
	[]string{"source"},
)

// TokensIssuedTotal counts minted tokens.
// Label:
//   - type: "access" or "refresh"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of signed tokens issued, by token type.",
	},
	[]string{"type"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events by outcome.
// Labels:
//   - kind: the auth event kind (e.g. "login_succeeded")
//   - result: "stored", "dropped" (queue full) or "error"
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of authentication audit events, by kind and outcome.",
	},
	[]string{"kind", "result"},
)

// AuditQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
