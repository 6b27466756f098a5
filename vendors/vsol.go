package vendors

import "github.com/nanoncore/nano-ctlplane/types"

// V-SOL V1600G GPON OIDs (enterprise 1.3.6.1.4.1.37950)
// Index: <pon idx>.<onu idx>. Optical values are strings like "-28.530(dBm)".
const (
	OIDVSOLOnuCount    = "1.3.6.1.4.1.37950.1.1.6.1.2.1.5"   // registered ONUs per PON
	OIDVSOLOnuStatus   = "1.3.6.1.4.1.37950.1.1.6.1.1.2.1.2" // OMCC state
	OIDVSOLOnuRxPower  = "1.3.6.1.4.1.37950.1.1.6.1.1.3.1.7"
	OIDVSOLOnuDistance = "1.3.6.1.4.1.37950.1.1.6.1.1.3.1.8"
)

var vsolSchema = Schema{
	Vendor: types.VendorVSOL,
	Label:  "V-SOL",
	OIDs: OidSet{
		OnuCount:    OIDVSOLOnuCount,
		OnuStatus:   OIDVSOLOnuStatus,
		OnuRxPower:  OIDVSOLOnuRxPower,
		OnuDistance: OIDVSOLOnuDistance,
	},
	Status: genericStatus,
	// integer firmware variants report thousandths of a dBm
	RxPower: PowerRule{Scale: 0.001},
}
