package agent

// ConsentState is the effective state reported by HasConsent.
type ConsentState string

const (
	ConsentGranted ConsentState = "granted"
	ConsentDenied  ConsentState = "denied"
	ConsentPending ConsentState = "pending"
)

// Stored consent values. Absence of the key is the unset state.
const (
	consentValueGranted = "granted"
	consentValueDenied  = "denied"
)

// HasConsent reports the effective consent state. Tracking is opt-out by
// default: an unset record reads as granted unless the deployment requires
// explicit consent, in which case it reads as pending.
func (a *Agent) HasConsent() ConsentState {
	raw, ok := a.durable.Get(consentKey)
	switch {
	case ok && raw == consentValueDenied:
		return ConsentDenied
	case ok && raw == consentValueGranted:
		return ConsentGranted
	case a.requireConsent:
		return ConsentPending
	default:
		return ConsentGranted
	}
}

// SetConsent records an explicit user decision. Re-entrant; the user may
// flip the state any number of times. Granting consent emits a best-effort
// consent event directly to the consent endpoint, bypassing the gate so the
// grant itself is never blocked by a pending state.
func (a *Agent) SetConsent(granted bool) {
	value := consentValueDenied
	if granted {
		value = consentValueGranted
	}
	a.durable.Set(consentKey, value)

	if !granted {
		a.logger.Debug("Consent denied, non-essential tracking disabled",
			"visitorId", a.ResolveVisitorID())
		return
	}

	payload := map[string]any{
		"project_key":       a.projectKey,
		"visitor_id":        a.ResolveVisitorID(),
		"consent_given":     true,
		"consent_analytics": true,
		"consent_marketing": true,
	}
	a.post(a.consentURL, payload)
}
