package vendors

import "github.com/nanoncore/nano-ctlplane/types"

// FiberHome AN5516 OIDs (enterprise 1.3.6.1.4.1.5875).
// The ONU table uses one packed index arc: slot<<24 | pon<<16 | onu<<8.
const (
	OIDFiberHomeOnuStatus   = "1.3.6.1.4.1.5875.800.3.10.1.1.11"
	OIDFiberHomeOnuRxPower  = "1.3.6.1.4.1.5875.800.3.9.3.3.1.6" // value * 0.01 dBm
	OIDFiberHomeOnuDistance = "1.3.6.1.4.1.5875.800.3.10.1.1.14"
)

var fiberhomeSchema = Schema{
	Vendor: types.VendorFiberHome,
	Label:  "FiberHome",
	OIDs: OidSet{
		OnuStatus:   OIDFiberHomeOnuStatus,
		OnuRxPower:  OIDFiberHomeOnuRxPower,
		OnuDistance: OIDFiberHomeOnuDistance,
	},
	Status:  genericStatus,
	RxPower: PowerRule{Scale: 0.01},
	Packed:  &PackedIndex{PortShift: 16, PortMask: 0xFF, OnuShift: 8, OnuMask: 0xFF},
}
