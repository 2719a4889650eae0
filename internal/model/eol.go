package model

// EOLRecord holds the vendor milestones for a model or a whole product series.
// Dates are kept as the strings the vendor publishes; any of them may be empty.
type EOLRecord struct {
	Announcement string `json:"announcement,omitempty"`
	EndOfSale    string `json:"end_of_sale,omitempty"`
	EndOfSupport string `json:"end_of_support,omitempty"`
}

// Family is the functional product line a device belongs to
type Family string

const (
	FamilyMX    Family = "MX" // security appliances
	FamilyMS    Family = "MS" // switches, including Catalyst switches
	FamilyMR    Family = "MR" // wireless, including Catalyst wireless
	FamilyMV    Family = "MV" // cameras
	FamilyMG    Family = "MG" // cellular gateways
	FamilyMT    Family = "MT" // sensors
	FamilyZ     Family = "Z"  // teleworker gateways
	FamilyOther Family = "Other"
)

// Families lists every family in reporting order
var Families = []Family{FamilyMX, FamilyMS, FamilyMR, FamilyMV, FamilyMG, FamilyMT, FamilyZ, FamilyOther}

var familyDisplayNames = map[Family]string{
	FamilyMX: "Security Appliances",
	FamilyMS: "Switches",
	FamilyMR: "Wireless",
	FamilyMV: "Cameras",
	FamilyMG: "Cellular Gateway",
	FamilyMT: "IoT Sensors",
	FamilyZ:  "Teleworker",
}

// DisplayName returns the human readable product line name
func (f Family) DisplayName() string {
	if name, ok := familyDisplayNames[f]; ok {
		return name
	}
	return string(f)
}
