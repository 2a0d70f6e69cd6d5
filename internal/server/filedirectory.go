package server

import (
	"context"
	"encoding/json"
	"os"

	"github.com/juju/errors"
)

// FileDirectory loads the device/gateway/area directory from a single JSON
// file on disk — a concrete stand-in for pyfgc_name's read_name_file/
// read_group_file pair, which load their own proprietary name and group
// files. A real deployment's directory source can be swapped in by
// implementing DirectoryReader directly; this one exists so the daemon has
// something runnable out of the box.
type FileDirectory struct {
	Path string
}

type fileDirectoryDoc struct {
	Devices  map[string]DirectoryDevice  `json:"devices"`
	Gateways map[string]DirectoryGateway `json:"gateways"`
}

func (d FileDirectory) Read(_ context.Context) (Directory, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return Directory{}, errors.Annotatef(err, "reading directory file %q", d.Path)
	}
	var doc fileDirectoryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Directory{}, errors.Annotatef(err, "parsing directory file %q", d.Path)
	}

	areas := make(map[string]bool)
	for _, gw := range doc.Gateways {
		for _, g := range gw.Groups {
			areas[g] = true
		}
	}

	return Directory{Devices: doc.Devices, Gateways: doc.Gateways, Areas: areas}, nil
}
