package schemas

// -- Attack Technique Reference Data --

// criticalTechniques are the technique identifiers treated as high-impact
// wherever they appear: they raise the scoring baseline and trigger a
// dedicated alert from the correlator.
var criticalTechniques = map[string]struct{}{
	"T1486": {}, // Data Encrypted for Impact
	"T1490": {}, // Inhibit System Recovery
	"T1055": {}, // Process Injection
	"T1078": {}, // Valid Accounts
	"T1003": {}, // OS Credential Dumping
}

// IsCriticalTechnique reports whether the technique id is in the fixed
// critical set.
func IsCriticalTechnique(id string) bool {
	_, ok := criticalTechniques[id]
	return ok
}

// AnyCriticalTechnique reports whether any id in the list is critical.
func AnyCriticalTechnique(ids []string) bool {
	for _, id := range ids {
		if IsCriticalTechnique(id) {
			return true
		}
	}
	return false
}

// killChainByTechnique maps technique identifiers to the kill-chain phase
// they evidence. Unknown techniques map to no phase.
var killChainByTechnique = map[string]string{
	"T1566": "initial-access",
	"T1190": "initial-access",
	"T1059": "execution",
	"T1204": "execution",
	"T1547": "persistence",
	"T1078": "persistence",
	"T1055": "privilege-escalation",
	"T1003": "credential-access",
	"T1021": "lateral-movement",
	"T1071": "command-and-control",
	"T1041": "exfiltration",
	"T1486": "impact",
	"T1490": "impact",
}

// KillChainPhases derives the ordered, de-duplicated set of kill-chain
// phases evidenced by the given techniques.
func KillChainPhases(techniques []string) []string {
	seen := make(map[string]struct{}, len(techniques))
	var phases []string
	for _, id := range techniques {
		phase, ok := killChainByTechnique[id]
		if !ok {
			continue
		}
		if _, dup := seen[phase]; dup {
			continue
		}
		seen[phase] = struct{}{}
		phases = append(phases, phase)
	}
	return phases
}
