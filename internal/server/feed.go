// Package server runs the top-level control loop: it polls the fleet
// status feed, classifies which devices want reprogramming, dispatches
// jobs to the right area pool, and exposes the local control socket.
//
// Grounded on original_source/program_manager/pm_server.py
// (ProgramManagerServer, filter_jobs, _get_status_srv_connection) and
// spec.md §4.6/§6 (status-feed and directory-feed shapes).
package server

import (
	"context"
	"strings"
)

// GatewayStatus is one gateway's entry in a status-feed snapshot: when it
// last reported, and the latched flags of every device it carries.
type GatewayStatus struct {
	RecvTimeSec int64                   `json:"recv_time_sec"`
	Devices     map[string]DeviceStatus `json:"devices"`
}

// DeviceStatus is one device's unlatched-status string, e.g. containing
// the SYNC_REGFGC3 flag that marks it a reconciliation candidate.
type DeviceStatus struct {
	STUnlatched string `json:"st_unlatched"`
}

// StatusSnapshot maps gateway name to its status, the Go shape of
// pyfgc_statussrv.get_status_all's return value.
type StatusSnapshot map[string]GatewayStatus

// StatusFeed is the abstract fleet status source §6 of spec.md names.
// Implementations own their own reconnect logic; GetStatusAll should
// return an error rather than block indefinitely on a dead connection, so
// the server loop can log and retry on its own cadence.
type StatusFeed interface {
	GetStatusAll(ctx context.Context) (StatusSnapshot, error)
	Close() error
}

// DirectoryDevice is one entry of the directory feed's devices mapping.
type DirectoryDevice struct {
	ClassID string `json:"class_id"`
	Gateway string `json:"gateway"`
}

// DirectoryGateway is one entry of the directory feed's gateways mapping:
// the areas (groups) a gateway's devices belong to. The original always
// reads groups[0]; a gateway is only ever resolved to its first group.
type DirectoryGateway struct {
	Groups []string `json:"groups"`
}

// Directory is the name/group file contents: devices, gateways and the
// known area set, the Go shape of pyfgc_name's module-level devices/
// gateways/groups dictionaries.
type Directory struct {
	Devices  map[string]DirectoryDevice
	Gateways map[string]DirectoryGateway
	Areas    map[string]bool
}

// AreaOf returns the area a device belongs to, via its gateway's first
// group, and whether the lookup succeeded.
func (d Directory) AreaOf(device string) (string, bool) {
	dev, ok := d.Devices[device]
	if !ok {
		return "", false
	}
	gw, ok := d.Gateways[dev.Gateway]
	if !ok || len(gw.Groups) == 0 {
		return "", false
	}
	return gw.Groups[0], true
}

// DirectoryReader loads the current name/group directory, the Go
// counterpart of pyfgc_name.read_name_file/read_group_file.
type DirectoryReader interface {
	Read(ctx context.Context) (Directory, error)
}

// statusFreshnessWindow is 2 x STATUS_SRV_REFRESH_SEC, the staleness bound
// filter_jobs applies to a gateway's recv_time_sec.
const statusFreshnessWindow = 2 * 5 // seconds

const syncFlag = "SYNC_REGFGC3"

// FilterJobs yields (device, area) pairs worth reconciling: the device's
// gateway must have reported within statusFreshnessWindow of now, its
// ST_UNLATCHED flags must contain SYNC_REGFGC3, and it must resolve to a
// known area via dir. Mirrors filter_jobs exactly, including its silent
// skip of devices the directory cannot resolve (a bare KeyError "pass" in
// the original).
func FilterJobs(snapshot StatusSnapshot, dir Directory, nowUnix int64) []DeviceArea {
	var out []DeviceArea
	for _, gw := range snapshot {
		if gw.RecvTimeSec < nowUnix-statusFreshnessWindow {
			continue
		}
		for name, dev := range gw.Devices {
			if !strings.Contains(dev.STUnlatched, syncFlag) {
				continue
			}
			area, ok := dir.AreaOf(name)
			if !ok {
				continue
			}
			out = append(out, DeviceArea{Device: name, Area: area})
		}
	}
	return out
}

// DeviceArea pairs a reconciliation candidate with its target pool.
type DeviceArea struct {
	Device string
	Area   string
}
