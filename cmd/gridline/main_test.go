package main

import (
	"reflect"
	"testing"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name      string
		rest, raw []string
		files     []string
		args      []string
	}{
		{"files only", []string{"a.go"}, []string{"a.go"}, []string{"a.go"}, nil},
		{"after files", []string{"a.go", "--", "--clean"}, []string{"a.go", "--", "--clean"}, []string{"a.go"}, []string{"--clean"}},
		{"consumed dash", []string{"--clean"}, []string{"--no-idle", "--", "--clean"}, nil, []string{"--clean"}},
		{"nothing", nil, nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, args := splitArgs(tt.rest, tt.raw)
			if !reflect.DeepEqual(files, tt.files) || !reflect.DeepEqual(args, tt.args) {
				t.Errorf("splitArgs() = %v, %v; want %v, %v", files, args, tt.files, tt.args)
			}
		})
	}
}
