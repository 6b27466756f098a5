package vendors

import "github.com/nanoncore/nano-ctlplane/types"

// ZTE C300/C320 GPON OIDs (enterprise 1.3.6.1.4.1.3902)
// Index: <gpon ifIndex>.<onu id>
const (
	OIDZTEOnuCount    = "1.3.6.1.4.1.3902.1012.3.13.1.1.13"
	OIDZTEOnuStatus   = "1.3.6.1.4.1.3902.1012.3.28.2.1.4"
	OIDZTEOnuRxPower  = "1.3.6.1.4.1.3902.1012.3.50.12.1.1.10" // raw*0.002-30 dBm, 65535 = no reading
	OIDZTEOnuDistance = "1.3.6.1.4.1.3902.1012.3.11.4.1.2"
)

var zteSchema = Schema{
	Vendor: types.VendorZTE,
	Label:  "ZTE",
	OIDs: OidSet{
		OnuCount:    OIDZTEOnuCount,
		OnuStatus:   OIDZTEOnuStatus,
		OnuRxPower:  OIDZTEOnuRxPower,
		OnuDistance: OIDZTEOnuDistance,
	},
	Status:  genericStatus,
	RxPower: PowerRule{Scale: 0.002, Offset: -30, Invalid: []int64{65535}},
}
