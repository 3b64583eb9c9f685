package main

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		remove  string
		reset   bool
		yes     bool
		wantErr bool
	}{
		{"remove ids", "p-1,p-2", false, false, false},
		{"reset confirmed", "", true, true, false},
		{"reset unconfirmed", "", true, false, true},
		{"reset and remove", "p-1", true, true, true},
		{"nothing", "", false, false, true},
		{"only separators", " , ,", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.remove, tt.reset, tt.yes)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" p-1, ,p-2 ,")
	want := []string{"p-1", "p-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitIDs() = %v, want %v", got, want)
	}
}
