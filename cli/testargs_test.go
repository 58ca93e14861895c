package cli

import (
	"reflect"
	"testing"
)

func TestSplitPassthrough(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		raw            []string
		wantPositional []string
		wantExtra      []string
	}{
		{
			name:           "no separator",
			args:           []string{"tests.csv"},
			raw:            []string{"testbatch", "run", "--target", "x", "tests.csv"},
			wantPositional: []string{"tests.csv"},
		},
		{
			name:           "separator after positional",
			args:           []string{"tests.csv", "--", "-v", "--tb=short"},
			raw:            []string{"testbatch", "run", "--target", "x", "tests.csv", "--", "-v", "--tb=short"},
			wantPositional: []string{"tests.csv"},
			wantExtra:      []string{"-v", "--tb=short"},
		},
		{
			name:           "separator consumed by flag parser",
			args:           []string{"-v"},
			raw:            []string{"testbatch", "run", "--all-tests", "--", "-v"},
			wantPositional: []string{},
			wantExtra:      []string{"-v"},
		},
		{
			name:           "positional that looks like extra",
			args:           []string{"tests.csv"},
			raw:            []string{"testbatch", "run", "--", "tests.csv"},
			wantPositional: []string{},
			wantExtra:      []string{"tests.csv"},
		},
		{
			name:           "trailing separator",
			args:           []string{"tests.csv", "--"},
			raw:            []string{"testbatch", "run", "tests.csv", "--"},
			wantPositional: []string{"tests.csv"},
			wantExtra:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPositional, gotExtra := splitPassthrough(tt.args, tt.raw)
			if !reflect.DeepEqual(gotPositional, tt.wantPositional) {
				t.Errorf("splitPassthrough() positional = %v, want %v", gotPositional, tt.wantPositional)
			}
			if !reflect.DeepEqual(gotExtra, tt.wantExtra) {
				t.Errorf("splitPassthrough() extra = %v, want %v", gotExtra, tt.wantExtra)
			}
		})
	}
}
