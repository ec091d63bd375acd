package driver

import (
	"encoding/json"
	"fmt"

	"github.com/bile0026/shelly-exporter/internal/model"
)

type sysPayload struct {
	Uptime         *float64 `json:"uptime"`
	RAMFree        *float64 `json:"ram_free"`
	RAMSize        *float64 `json:"ram_size"`
	FSFree         *float64 `json:"fs_free"`
	FSSize         *float64 `json:"fs_size"`
	ConfigRevision *float64 `json:"cfg_rev"`
}

type wifiPayload struct {
	RSSI   *float64 `json:"rssi"`
	Status *string  `json:"status"`
}

type cloudPayload struct {
	Connected *bool `json:"connected"`
}

type mqttPayload struct {
	Connected *bool `json:"connected"`
}

type inputPayload struct {
	State *bool `json:"state"`
}

// ExtractSystemTelemetry pulls the `sys`, `wifi`, `cloud`, `mqtt`, and
// `input:N` subtrees out of a Shelly.GetStatus payload. It is independent
// of any driver: every device family carries these keys (or omits them
// entirely) the same way, so no per-driver logic is needed here.
func ExtractSystemTelemetry(status json.RawMessage) (*model.SystemTelemetry, error) {
	top, err := topLevel(status)
	if err != nil {
		return nil, err
	}

	out := &model.SystemTelemetry{}

	if raw, ok := top["sys"]; ok {
		var sys sysPayload
		_ = json.Unmarshal(raw, &sys)
		out.UptimeSeconds = sys.Uptime
		out.RAMFreeBytes = sys.RAMFree
		out.RAMTotalBytes = sys.RAMSize
		out.FSFreeBytes = sys.FSFree
		out.FSTotalBytes = sys.FSSize
		out.ConfigRevision = sys.ConfigRevision
	}

	if raw, ok := top["wifi"]; ok {
		var wifi wifiPayload
		_ = json.Unmarshal(raw, &wifi)
		out.WiFiRSSI = wifi.RSSI
		if wifi.Status != nil {
			connected := *wifi.Status == "got ip"
			out.WiFiConnected = &connected
		}
	}

	if raw, ok := top["cloud"]; ok {
		var cloud cloudPayload
		_ = json.Unmarshal(raw, &cloud)
		out.CloudConnected = cloud.Connected
	}

	if raw, ok := top["mqtt"]; ok {
		var mqtt mqttPayload
		_ = json.Unmarshal(raw, &mqtt)
		out.MQTTConnected = mqtt.Connected
	}

	for idx := 0; idx < 8; idx++ {
		raw, ok := top[inputKey(idx)]
		if !ok {
			continue
		}
		var in inputPayload
		_ = json.Unmarshal(raw, &in)
		if in.State != nil {
			out.Inputs = append(out.Inputs, model.InputState{Index: idx, State: *in.State})
		}
	}

	return out, nil
}

func inputKey(index int) string { return fmt.Sprintf("input:%d", index) }
