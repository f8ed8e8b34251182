package policy

import "strings"

// BuildConfirmationToken produces "confirm-{first12(incident_id)}-{tool_key
// with '.'→'-'}". Callers may supply their own token instead.
func BuildConfirmationToken(incidentID, toolKey string) string {
	id := incidentID
	if len(id) > 12 {
		id = id[:12]
	}
	dashed := strings.ReplaceAll(toolKey, ".", "-")
	return "confirm-" + id + "-" + dashed
}
