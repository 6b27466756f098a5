package vendors

import "github.com/nanoncore/nano-ctlplane/types"

// C-Data FD11xx EPON OIDs (enterprise 1.3.6.1.4.1.17409)
// Index: <device>.<pon idx>.<onu idx>; status 3 is loss of signal.
const (
	OIDCDataOnuCount    = "1.3.6.1.4.1.17409.2.3.3.1.1.21"
	OIDCDataOnuStatus   = "1.3.6.1.4.1.17409.2.3.4.1.1.8"
	OIDCDataOnuRxPower  = "1.3.6.1.4.1.17409.2.3.4.2.1.4" // value * 0.01 dBm
	OIDCDataOnuDistance = "1.3.6.1.4.1.17409.2.3.4.1.1.15"
)

var cdataSchema = Schema{
	Vendor: types.VendorCData,
	Label:  "C-Data",
	OIDs: OidSet{
		OnuCount:    OIDCDataOnuCount,
		OnuStatus:   OIDCDataOnuStatus,
		OnuRxPower:  OIDCDataOnuRxPower,
		OnuDistance: OIDCDataOnuDistance,
	},
	Status: StatusRule{
		Codes: map[int]types.OnuStatus{
			1: types.OnuOnline,
			3: types.OnuLOS,
		},
		Default: types.OnuOffline,
	},
	RxPower: PowerRule{Scale: 0.01},
}
