package enrichment

import (
	"sort"
	"strings"
)

// -- Technique Mapping --

// techniqueRule maps an event-type substring plus an optional action
// substring to the technique it evidences.
type techniqueRule struct {
	eventTypeContains string
	actionContains    string
	technique         string
}

// techniqueRules is the fixed mapping table. Matching is substring-based on
// lowercase input, so connector naming variations ("process_creation",
// "ProcessCreate") still hit.
var techniqueRules = []techniqueRule{
	{eventTypeContains: "process", actionContains: "powershell", technique: "T1059"},
	{eventTypeContains: "process", actionContains: "cmd", technique: "T1059"},
	{eventTypeContains: "process", actionContains: "inject", technique: "T1055"},
	{eventTypeContains: "process_creation", technique: "T1059"},
	{eventTypeContains: "login", actionContains: "success", technique: "T1078"},
	{eventTypeContains: "authentication", actionContains: "success", technique: "T1078"},
	{eventTypeContains: "credential", technique: "T1003"},
	{eventTypeContains: "lsass", technique: "T1003"},
	{eventTypeContains: "network", actionContains: "beacon", technique: "T1071"},
	{eventTypeContains: "dns", actionContains: "tunnel", technique: "T1071"},
	{eventTypeContains: "smb", actionContains: "lateral", technique: "T1021"},
	{eventTypeContains: "remote", actionContains: "exec", technique: "T1021"},
	{eventTypeContains: "file", actionContains: "encrypt", technique: "T1486"},
	{eventTypeContains: "backup", actionContains: "delete", technique: "T1490"},
	{eventTypeContains: "shadow_copy", actionContains: "delete", technique: "T1490"},
	{eventTypeContains: "email", actionContains: "attachment", technique: "T1566"},
	{eventTypeContains: "web", actionContains: "exploit", technique: "T1190"},
	{eventTypeContains: "registry", actionContains: "run_key", technique: "T1547"},
	{eventTypeContains: "upload", actionContains: "external", technique: "T1041"},
}

// MapTechniques applies the rule table to an event's type and action and
// returns the sorted, de-duplicated technique set.
func MapTechniques(eventType, action string) []string {
	et := strings.ToLower(eventType)
	act := strings.ToLower(action)

	seen := make(map[string]struct{})
	for _, rule := range techniqueRules {
		if !strings.Contains(et, rule.eventTypeContains) {
			continue
		}
		if rule.actionContains != "" && !strings.Contains(act, rule.actionContains) {
			continue
		}
		seen[rule.technique] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
