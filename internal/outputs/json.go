package outputs

import "encoding/json"

// RenderJSON renders a report as an indented JSON payload.
func RenderJSON(report Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
