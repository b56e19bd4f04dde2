package api

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeSSE writes one Server-Sent Events frame: "event: <event>\ndata:
// <json>\n\n".
func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
