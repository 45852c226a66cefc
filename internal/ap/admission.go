package ap

// AdmissionDecision is the outcome of one admission check.
type AdmissionDecision struct {
	Allowed bool
	Reason  DisconnectReason
}

var admitted = AdmissionDecision{Allowed: true}

// EffectiveMaxClients is the capacity actually enforced: the hardware
// limit, tightened by the configured maximum when one is set.
func EffectiveMaxClients(cfg Configuration, cap Capability) int {
	limit := cap.MaxClients
	if cfg.MaxClients > 0 && (limit == 0 || cfg.MaxClients < limit) {
		limit = cfg.MaxClients
	}
	return limit
}

// Admit decides whether a newly associated client may stay. Checks run in
// a fixed order: blocked list, allow list (when user control is on), then
// capacity. connected is the station count before this client.
//
// Hardware without the force-disconnect feature cannot enforce any of
// this, so everything is admitted there.
func Admit(client Client, cfg Configuration, cap Capability, connected int) AdmissionDecision {
	if !cap.Supports(FeatureClientForceDisconnect) {
		return admitted
	}
	for _, m := range cfg.BlockedClients {
		if m == client.MAC {
			return AdmissionDecision{Reason: DisconnectBlockedByUser}
		}
	}
	if cfg.ClientControlByUser && !macListed(cfg.AllowedClients, client.MAC) {
		return AdmissionDecision{Reason: DisconnectBlockedByUser}
	}
	if limit := EffectiveMaxClients(cfg, cap); limit > 0 && connected >= limit {
		return AdmissionDecision{Reason: DisconnectNoMoreStations}
	}
	return admitted
}

func macListed(list []MAC, m MAC) bool {
	for _, e := range list {
		if e == m {
			return true
		}
	}
	return false
}
