package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"rose", "rose"},
		{"Rose", "rose"},
		{"Mary Jane", "mary-jane"},
		{" Mary  Jane ", "-mary-jane-"},
		{"José", "jose"},
		{"o'brien", "obrien"},
		{"a--b  c", "a--b-c"},
		{"mary--ann", "mary--ann"},
		{"-bob-", "-bob-"},
		{"a - b", "a---b"},
		{"tab\tsep", "tab-sep"},
		{"v\vtab", "v-tab"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, UserKey(tt.in))
		})
	}
}
