// Package command turns inbound command messages into device actions.
package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlas-iot/aurora/internal/actions"
	"github.com/atlas-iot/aurora/internal/errors"
)

// Command is one decoded command message.
type Command struct {
	Action string
	Params actions.Params
}

// Parse decodes a command payload: a JSON object with a string "action" and
// action-specific parameters, either at the top level or under "params".
//
//	{"action":"notification","title":"Hi","text":"Door opened"}
//	{"action":"vibrate","params":{"duration_ms":800}}
//
// Keys under "params" win over top-level keys of the same name.
func Parse(payload []byte) (Command, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Command{}, errors.WrapWithCode(err, errors.ErrCommand,
			fmt.Sprintf("Malformed command payload: %s", preview(payload)),
			`Send a JSON object such as {"action":"vibrate"}`)
	}
	if raw == nil {
		return Command{}, errors.New(errors.ErrCommand,
			"Command payload is null",
			`Send a JSON object such as {"action":"vibrate"}`)
	}

	action, _ := raw["action"].(string)
	action = strings.TrimSpace(action)
	if action == "" {
		return Command{}, errors.New(errors.ErrCommand,
			fmt.Sprintf("Command has no action: %s", preview(payload)),
			`Add a string "action" field`)
	}

	params := actions.Params{}
	for k, v := range raw {
		if k == "action" || k == "params" {
			continue
		}
		params[k] = v
	}
	if nested, ok := raw["params"].(map[string]interface{}); ok {
		for k, v := range nested {
			params[k] = v
		}
	}

	return Command{Action: action, Params: params}, nil
}

// preview shortens a payload for log output.
func preview(payload []byte) string {
	const max = 80
	s := strings.TrimSpace(string(payload))
	if len(s) > max {
		return fmt.Sprintf("%q...", s[:max])
	}
	return fmt.Sprintf("%q", s)
}
