package hardware

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/archon-installer/archon/types"
)

// Probe is a snapshot of everything the installer knows about the machine
// before any stage runs. It backs the `archon probe` subcommand.
type Probe struct {
	Firmware  types.FirmwareMode `json:"firmware" yaml:"firmware"`
	RAMBytes  int64              `json:"ram_bytes" yaml:"ram_bytes"`
	CPUVendor string             `json:"cpu_vendor" yaml:"cpu_vendor"`
	Disks     []types.DiskInfo   `json:"disks" yaml:"disks"`
}

// Query evaluates a jq path expression against the snapshot and returns the
// concatenated results.
func (p Probe) Query(s string) (res string, err error) {
	s = fmt.Sprintf(".%s", s)
	jsondata := map[string]interface{}{}
	var dat []byte
	dat, err = json.Marshal(p)
	if err != nil {
		return
	}
	err = json.Unmarshal(dat, &jsondata)
	if err != nil {
		return
	}
	query, err := gojq.Parse(s)
	if err != nil {
		return res, err
	}
	iter := query.Run(jsondata)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return res, err
		}
		res += fmt.Sprint(v)
	}
	return
}

// YAML renders the snapshot for display.
func (p Probe) YAML() (string, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("rendering probe: %w", err)
	}
	return string(out), nil
}
