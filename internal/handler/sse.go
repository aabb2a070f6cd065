package handler

import (
	"bytes"
	"fmt"
	"io"
)

// Event is one server-sent event on the deploy-log stream. An event
// with Data carries a log line (ID holds the build id); an event with
// only Comment is a keepalive that clients ignore.
type Event struct {
	ID      []byte
	Data    []byte
	Event   []byte
	Comment []byte
}

// MarshalTo writes the event in SSE wire format. Payloads containing
// newlines become one data: field per line, as the format requires.
func (ev *Event) MarshalTo(w io.Writer) error {
	if len(ev.Data) == 0 && len(ev.Comment) == 0 {
		return nil
	}

	if len(ev.Data) > 0 {
		if len(ev.ID) > 0 {
			if _, err := fmt.Fprintf(w, "id: %s\n", ev.ID); err != nil {
				return err
			}
		}
		if len(ev.Event) > 0 {
			if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
				return err
			}
		}
		for _, line := range bytes.Split(ev.Data, []byte("\n")) {
			if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
				return err
			}
		}
	}

	if len(ev.Comment) > 0 {
		if _, err := fmt.Fprintf(w, ": %s\n", ev.Comment); err != nil {
			return err
		}
	}

	_, err := fmt.Fprint(w, "\n")
	return err
}
