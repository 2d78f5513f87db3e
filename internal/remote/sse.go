package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// readEvents consumes a message/stream response, passing chunk text to emit
// until a done or error event arrives.
func readEvents(ctx context.Context, body io.Reader, emit func(string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)

	var event string
	var data strings.Builder
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			done, err := dispatch(event, data.String(), emit)
			if err != nil || done {
				return err
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if event != "" || data.Len() > 0 {
		done, err := dispatch(event, data.String(), emit)
		if err != nil || done {
			return err
		}
	}
	return protocolErr("stream ended without done event")
}

func dispatch(event, data string, emit func(string) error) (bool, error) {
	switch event {
	case protocol.EventChunk, "":
		var c protocol.Chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return false, protocolErr("malformed chunk: %v", err)
		}
		return false, emit(c.Text)
	case protocol.EventError:
		var e protocol.RPCError
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return false, protocolErr("malformed error event: %v", err)
		}
		return false, &CallError{Failure: models.Failure{
			Kind:     models.FailureRemote,
			Category: e.Category(),
			Message:  e.Message,
		}}
	case protocol.EventDone:
		return true, nil
	default:
		return false, nil
	}
}
