package driver

import "encoding/json"

// tempField mirrors the `temperature` subtree shared by switch and light
// channel payloads: `{"tC": 42.1, "tF": 107.8}`. A nil pointer anywhere
// here means the corresponding key was missing or JSON null.
type tempField struct {
	TC *float64 `json:"tC"`
}

// energyField mirrors the `aenergy`/`ret_aenergy` subtree: `{"total": 1234.5, ...}`.
type energyField struct {
	Total *float64 `json:"total"`
}

func tempC(t *tempField) *float64 {
	if t == nil {
		return nil
	}
	return t.TC
}

func energyTotal(e *energyField) *float64 {
	if e == nil {
		return nil
	}
	return e.Total
}

// switchPayload is the `switch:N` subtree of a Shelly.GetStatus response.
type switchPayload struct {
	Output      *bool        `json:"output"`
	APower      *float64     `json:"apower"`
	Voltage     *float64     `json:"voltage"`
	Freq        *float64     `json:"freq"`
	Current     *float64     `json:"current"`
	PF          *float64     `json:"pf"`
	Temperature *tempField   `json:"temperature"`
	AEnergy     *energyField `json:"aenergy"`
	RetAEnergy  *energyField `json:"ret_aenergy"`
}

// lightPayload is the `light:N` subtree of a Shelly.GetStatus response.
type lightPayload struct {
	Output      *bool        `json:"output"`
	Brightness  *float64     `json:"brightness"`
	APower      *float64     `json:"apower"`
	AEnergy     *energyField `json:"aenergy"`
	Voltage     *float64     `json:"voltage"`
	Current     *float64     `json:"current"`
	Temperature *tempField   `json:"temperature"`
}

// topLevel decodes a Shelly.GetStatus response into its top-level keys
// without committing to any particular channel's shape, so a driver can
// pick out just the `switch:N`/`light:N` entries it supports and ignore
// the rest (`sys`, `wifi`, `cloud`, `mqtt`, `input:N`, ...).
func topLevel(status json.RawMessage) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(status, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeSwitch(raw json.RawMessage) switchPayload {
	var p switchPayload
	// A malformed individual channel is tolerated: absent fields, not an
	// aborted poll. json.Unmarshal errors here are deliberately ignored;
	// fields simply stay nil.
	_ = json.Unmarshal(raw, &p)
	return p
}

func decodeLight(raw json.RawMessage) lightPayload {
	var p lightPayload
	_ = json.Unmarshal(raw, &p)
	return p
}
