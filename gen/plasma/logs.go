package plasma

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const programDataPrefix = "Program data: "

// ParseLogs returns the events the program wrote into a transaction's log
// messages. Only "Program data:" lines emitted while the program is on the
// invoke stack are decoded. Lines that fail to decode are skipped and
// reported in the joined error.
func ParseLogs(logs []string) ([]Event, error) {
	var (
		invoke  = "Program " + ProgramID.String() + " invoke"
		success = "Program " + ProgramID.String() + " success"
		failed  = "Program " + ProgramID.String() + " failed"
		depth   int
		events  []Event
		errs    []error
	)
	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, invoke):
			depth++
		case strings.HasPrefix(line, success), strings.HasPrefix(line, failed):
			if depth == 0 {
				errs = append(errs, fmt.Errorf("unbalanced log stack: %q", line))
				continue
			}
			depth--
		case strings.HasPrefix(line, programDataPrefix) && depth > 0:
			event, err := DecodeEventBase64(strings.TrimSpace(strings.TrimPrefix(line, programDataPrefix)))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			events = append(events, event)
		}
	}
	return events, errors.Join(errs...)
}

// EventLogLine formats an encoded event the way the runtime logs it.
func EventLogLine(encoded []byte) string {
	return programDataPrefix + base64.StdEncoding.EncodeToString(encoded)
}
