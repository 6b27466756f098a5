package ctlplane

// Re-export the shared types so callers can stay on the root package

import (
	"github.com/nanoncore/nano-ctlplane/types"
)

// Type aliases for the public surface
type (
	Protocol      = types.Protocol
	Vendor        = types.Vendor
	RouterProfile = types.RouterProfile
	OltProfile    = types.OltProfile
	OnuRecord     = types.OnuRecord
	PortInfo      = types.PortInfo
	DeviceInfo    = types.DeviceInfo
	OltStats      = types.OltStats
	CoaRequest    = types.CoaRequest
	CoaOutcome    = types.CoaOutcome
)

// Re-export constants
const (
	ProtocolAPI    = types.ProtocolAPI
	ProtocolAPISSL = types.ProtocolAPISSL
	ProtocolSSH    = types.ProtocolSSH
	ProtocolMock   = types.ProtocolMock

	VendorGeneric   = types.VendorGeneric
	VendorZTE       = types.VendorZTE
	VendorHuawei    = types.VendorHuawei
	VendorFiberHome = types.VendorFiberHome
	VendorVSOL      = types.VendorVSOL
	VendorCData     = types.VendorCData
)
