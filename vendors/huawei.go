package vendors

import "github.com/nanoncore/nano-ctlplane/types"

// Huawei MA5600/MA5800 GPON OIDs (enterprise 1.3.6.1.4.1.2011)
// Index: <port ifIndex>.<onu id>. Optical values of 2147483647 mean offline.
const (
	OIDHuaweiOnuCount    = "1.3.6.1.4.1.2011.6.128.1.1.2.21.1.16"
	OIDHuaweiOnuStatus   = "1.3.6.1.4.1.2011.6.128.1.1.2.46.1.15" // run state
	OIDHuaweiOnuRxPower  = "1.3.6.1.4.1.2011.6.128.1.1.2.51.1.4"  // value * 0.01 dBm
	OIDHuaweiOnuDistance = "1.3.6.1.4.1.2011.6.128.1.1.2.46.1.20"
)

var huaweiSchema = Schema{
	Vendor: types.VendorHuawei,
	Label:  "Huawei",
	OIDs: OidSet{
		OnuCount:    OIDHuaweiOnuCount,
		OnuStatus:   OIDHuaweiOnuStatus,
		OnuRxPower:  OIDHuaweiOnuRxPower,
		OnuDistance: OIDHuaweiOnuDistance,
	},
	Status:  genericStatus,
	RxPower: PowerRule{Scale: 0.01},
}
