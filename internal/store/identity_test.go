package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocIDBanding(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.10.201", "192.168.10.200"},
		{"192.168.10.202", "192.168.10.200"},
		{"192.168.10.209", "192.168.10.200"},
		{"192.168.10.211", "192.168.10.210"},
		{"10.0.0.5", "10.0.0.0"},
		{"10.0.0.255", "10.0.0.250"},
		{"0.0.0.0", "0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got, err := SocID(tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoardIDBanding(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.10.201", "192.168.10.200"},
		{"192.168.10.222", "192.168.10.200"},
		{"192.168.10.99", "192.168.10.0"},
		{"192.168.10.100", "192.168.10.100"},
		{"10.0.0.322", ""}, // octet out of range
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got, err := BoardID(tt.ip)
			if tt.want == "" {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupingBoundaries(t *testing.T) {
	soc1, err := SocID("10.1.2.201")
	require.NoError(t, err)
	soc2, err := SocID("10.1.2.202")
	require.NoError(t, err)
	assert.Equal(t, soc1, soc2, "same tens band shares a SoC")

	soc3, err := SocID("10.1.2.211")
	require.NoError(t, err)
	assert.NotEqual(t, soc1, soc3, "different tens band splits SoCs")

	board1, err := BoardID("10.1.2.201")
	require.NoError(t, err)
	board3, err := BoardID("10.1.2.211")
	require.NoError(t, err)
	assert.Equal(t, board1, board3, "same hundreds band shares a board")

	board4, err := BoardID("10.1.2.122")
	require.NoError(t, err)
	assert.NotEqual(t, board1, board4, "different hundreds band splits boards")
}

// The board derived from an address must equal the board derived from that
// address's own SoC identifier, otherwise the board SoC-list rebuild would
// misplace groups.
func TestBoardIDConsistentWithSocID(t *testing.T) {
	for d := 0; d <= 255; d++ {
		ip := fmt.Sprintf("172.16.33.%d", d)
		socID, err := SocID(ip)
		require.NoError(t, err)
		direct, err := BoardID(ip)
		require.NoError(t, err)
		viaSoc, err := BoardID(socID)
		require.NoError(t, err)
		assert.Equal(t, direct, viaSoc, "address %s", ip)
	}
}

func TestInvalidAddresses(t *testing.T) {
	bad := []string{
		"",
		"999.1.1.1",
		"1.2.3",
		"1.2.3.4.5",
		"a.b.c.d",
		"10.0.0.-1",
		"10.0.0.256",
		"::1",
	}
	for _, ip := range bad {
		t.Run(ip, func(t *testing.T) {
			_, err := SocID(ip)
			assert.ErrorIs(t, err, ErrInvalidAddress)
			_, err = BoardID(ip)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}
