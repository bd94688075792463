package validation

import (
	"errors"
	"testing"
)

func TestValidateCity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
		wantErr error
	}{
		{
			name:  "simple city",
			input: "London",
			want:  "London",
		},
		{
			name:  "trims whitespace",
			input: "  New York  ",
			want:  "New York",
		},
		{
			name:  "comma and hyphen",
			input: "Winston-Salem, NC",
			want:  "Winston-Salem, NC",
		},
		{
			name:  "apostrophe and period",
			input: "St. John's",
			want:  "St. John's",
		},
		{
			name:  "unicode letters",
			input: "Zürich",
			want:  "Zürich",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: ErrCityEmpty,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: ErrCityEmpty,
		},
		{
			name:    "disallowed characters",
			input:   "London; DROP TABLE",
			wantErr: ErrCityInvalidChars,
		},
		{
			name:    "too long",
			input:   "Llanfairpwllgwyngyll",
			maxLen:  10,
			wantErr: ErrCityTooLong,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateCity(tc.input, tc.maxLen)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ValidateCity(%q) error = %v, want %v", tc.input, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateCity(%q) error = %v, want nil", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateCity(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
