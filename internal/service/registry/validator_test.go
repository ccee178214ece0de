package registry

import (
	"errors"
	"testing"

	"parking-service/internal/domain/parking"
)

func TestValidate(t *testing.T) {
	v := NewValidator(DefaultRegionCodes, 4)

	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{"already normalized", "DL01AB1234", "DL01AB1234", nil},
		{"lowercase with spaces", "  mh12de1433 ", "MH12DE1433", nil},
		{"unknown region", "ZZ01AB1234", "", parking.ErrInvalidIdentifier},
		{"too short", "DL1", "", parking.ErrInvalidIdentifier},
		{"empty", "   ", "", parking.ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err: got %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
