// internal/service/registry/validator.go
package registry

import (
	"strings"

	"parking-service/internal/domain/parking"
)

// DefaultRegionCodes are the recognized two-letter registration prefixes.
var DefaultRegionCodes = []string{
	"AN", "AP", "AR", "AS", "BR", "CH", "CG", "DD", "DL", "GA", "GJ", "HR",
	"HP", "JK", "JH", "KA", "KL", "LA", "LD", "MP", "MH", "MN", "ML", "MZ",
	"NL", "OD", "PY", "PB", "RJ", "SK", "TN", "TS", "TR", "UP", "UK", "WB",
}

// Validator normalizes and checks vehicle numbers.
type Validator struct {
	regions map[string]struct{}
	minLen  int
}

func NewValidator(regionCodes []string, minLen int) *Validator {
	if minLen < 2 {
		minLen = 2
	}
	regions := make(map[string]struct{}, len(regionCodes))
	for _, code := range regionCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			regions[code] = struct{}{}
		}
	}
	return &Validator{regions: regions, minLen: minLen}
}

// Normalize trims and uppercases a vehicle number.
func Normalize(vehicleNumber string) string {
	return strings.ToUpper(strings.TrimSpace(vehicleNumber))
}

// Validate returns the normalized number or ErrInvalidIdentifier.
func (v *Validator) Validate(vehicleNumber string) (string, error) {
	n := Normalize(vehicleNumber)
	if len(n) < v.minLen {
		return "", parking.ErrInvalidIdentifier
	}
	if _, ok := v.regions[n[:2]]; !ok {
		return "", parking.ErrInvalidIdentifier
	}
	return n, nil
}
