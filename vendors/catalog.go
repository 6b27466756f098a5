// Package vendors is the OID catalog for OLT terminal discovery.
//
// Every supported vendor is one Schema entry in a table keyed by types.Vendor.
// Adding a vendor means adding a file with its OIDs and a table row; the
// inventory service never branches on vendor names.
package vendors

import (
	"github.com/nanoncore/nano-ctlplane/types"
	"github.com/nanoncore/nano-ctlplane/vendors/common"
)

// OidSet maps the logical ONU attributes to numeric OID roots.
// An empty root means the vendor does not expose the attribute.
type OidSet struct {
	OnuCount    string // per-port registered ONU count, indexed by port
	OnuStatus   string
	OnuRxPower  string
	OnuDistance string
}

// StatusRule decodes a vendor status code
type StatusRule struct {
	Codes   map[int]types.OnuStatus
	Default types.OnuStatus
}

// Decode maps a raw code to a normalized status
func (r StatusRule) Decode(code int) types.OnuStatus {
	if s, ok := r.Codes[code]; ok {
		return s
	}
	return r.Default
}

// genericStatus is the common rule: 1 is online, anything else offline
var genericStatus = StatusRule{
	Codes:   map[int]types.OnuStatus{1: types.OnuOnline},
	Default: types.OnuOffline,
}

// PowerRule converts raw integer optical readings to dBm: raw*Scale + Offset.
// String readings such as "-21.30(dBm)" are parsed as-is.
type PowerRule struct {
	Scale   float64
	Offset  float64
	Invalid []int64
}

// Convert turns a decoded SNMP value into dBm
func (r PowerRule) Convert(value interface{}) (float64, bool) {
	if s, ok := value.(string); ok {
		if f, ok := common.ParseOpticalString(s); ok {
			return f, true
		}
	}
	raw, ok := common.ParseIntSNMPValue(value)
	if !ok {
		return 0, false
	}
	if raw == common.SNMPInvalidValue {
		return 0, false
	}
	for _, bad := range r.Invalid {
		if raw == bad {
			return 0, false
		}
	}
	scale := r.Scale
	if scale == 0 {
		scale = 1
	}
	return float64(raw)*scale + r.Offset, true
}

// PackedIndex decodes a single-arc ONU index that packs port and ONU id
type PackedIndex struct {
	PortShift uint
	PortMask  int
	OnuShift  uint
	OnuMask   int
}

// Schema is one catalog row
type Schema struct {
	Vendor  types.Vendor
	Label   string
	OIDs    OidSet
	Status  StatusRule
	RxPower PowerRule

	// Packed is set when the table index is a single packed arc.
	// Otherwise the trailing two arcs are port index and ONU id.
	Packed *PackedIndex
}

// SplitIndex extracts the port index and ONU id from a table index suffix
func (s Schema) SplitIndex(index string) (port, onu int, ok bool) {
	if s.Packed != nil {
		arcs, ok := common.LastArcs(index, 1)
		if !ok {
			return 0, 0, false
		}
		p := s.Packed
		return (arcs[0] >> p.PortShift) & p.PortMask, (arcs[0] >> p.OnuShift) & p.OnuMask, true
	}
	arcs, ok := common.LastArcs(index, 2)
	if !ok {
		return 0, 0, false
	}
	return arcs[0], arcs[1], true
}

var catalog = map[types.Vendor]Schema{
	types.VendorZTE:       zteSchema,
	types.VendorHuawei:    huaweiSchema,
	types.VendorFiberHome: fiberhomeSchema,
	types.VendorVSOL:      vsolSchema,
	types.VendorCData:     cdataSchema,
}

// Lookup returns the terminal schema for a vendor tag.
// The generic tag and unknown tags have none.
func Lookup(v types.Vendor) (Schema, bool) {
	s, ok := catalog[v]
	return s, ok
}

// Known reports whether v is one of the supported vendor tags
func Known(v types.Vendor) bool {
	if v == types.VendorGeneric {
		return true
	}
	_, ok := catalog[v]
	return ok
}

// Supported lists the vendor tags with terminal schemas
func Supported() []types.Vendor {
	return []types.Vendor{
		types.VendorZTE,
		types.VendorHuawei,
		types.VendorFiberHome,
		types.VendorVSOL,
		types.VendorCData,
	}
}
