package launcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The Steam client consumes these URIs byte-for-byte; any drift breaks the
// join flow silently.
func TestProtocolURIs(t *testing.T) {
	testCases := []struct {
		name     string
		build    func() string
		expected string
	}{
		{
			name:     "Join URI",
			build:    func() string { return JoinURI("730", "76561198000000001", "+gcconnectG082AB") },
			expected: "steam://rungame/730/76561198000000001/+gcconnectG082AB",
		},
		{
			name:     "Plain launch URI keeps trailing slash",
			build:    func() string { return RunURI("730") },
			expected: "steam://run/730/",
		},
		{
			name:     "Join URI with opaque token",
			build:    func() string { return JoinURI("730", "76561198000000002", "abc123") },
			expected: "steam://rungame/730/76561198000000002/abc123",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.build())
		})
	}
}
