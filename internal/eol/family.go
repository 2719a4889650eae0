package eol

import (
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/model"
)

// familyOfToken folds every product-line token into its functional family.
// Catalyst wireless (CW) is wireless, Catalyst switches (C) are switches and
// virtual appliances (VMX) are security appliances.
var familyOfToken = map[string]model.Family{
	"MX":  model.FamilyMX,
	"VMX": model.FamilyMX,
	"MS":  model.FamilyMS,
	"C":   model.FamilyMS,
	"MR":  model.FamilyMR,
	"CW":  model.FamilyMR,
	"MV":  model.FamilyMV,
	"MG":  model.FamilyMG,
	"MT":  model.FamilyMT,
	"Z":   model.FamilyZ,
}

// FamilyOf maps any model string to its family. It never fails: unknown
// models are FamilyOther.
func FamilyOf(raw string) model.Family {
	p, ok := ParseModel(raw)
	if !ok {
		return model.FamilyOther
	}
	return FamilyOfParsed(p)
}

// FamilyOfParsed is FamilyOf for an already tokenized model
func FamilyOfParsed(p ParsedModel) model.Family {
	if f, ok := familyOfToken[p.Family]; ok {
		return f
	}
	return model.FamilyOther
}

// IsSwitchSubBrand reports whether the model is a Catalyst switch managed as
// part of the switch family.
func IsSwitchSubBrand(p ParsedModel) bool {
	return p.Family == "C"
}

// IsWirelessSubBrand reports whether the model is a Catalyst wireless AP
func IsWirelessSubBrand(p ParsedModel) bool {
	return p.Family == "CW"
}

// IsLicense reports whether a catalog token is a license SKU rather than hardware
func IsLicense(token string) bool {
	return strings.HasPrefix(Normalize(token), "LIC-")
}
