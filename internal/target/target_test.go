package target

import (
	"fmt"
	"net/netip"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/osprey/internal/errors"
)

func TestExpandIPsSingle(t *testing.T) {
	spec, addrs, err := ExpandIPs("192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, KindSingleIP, spec.Kind)
	require.Len(t, addrs, 1)
	assert.Equal(t, "192.168.1.10", addrs[0].String())

	spec, addrs, err = ExpandIPs("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, KindSingleIP, spec.Kind)
	require.Len(t, addrs, 1)
	assert.Equal(t, "2001:db8::1", addrs[0].String())
}

func TestExpandIPsCIDR(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{"192.168.1.0/24", 256, "192.168.1.0", "192.168.1.255"},
		{"10.0.0.0/30", 4, "10.0.0.0", "10.0.0.3"},
		{"10.0.0.4/32", 1, "10.0.0.4", "10.0.0.4"},
		{"2001:db8::/126", 4, "2001:db8::", "2001:db8::3"},
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			spec, addrs, err := ExpandIPs(tt.cidr)
			require.NoError(t, err)
			assert.Equal(t, KindCIDR, spec.Kind)
			require.Len(t, addrs, tt.count)
			assert.Equal(t, tt.first, addrs[0].String())
			assert.Equal(t, tt.last, addrs[len(addrs)-1].String())
			assert.True(t, sort.SliceIsSorted(addrs, func(i, j int) bool {
				return addrs[i].Less(addrs[j])
			}), "addresses must be in ascending numeric order")
		})
	}
}

func TestExpandIPsCIDRTooLarge(t *testing.T) {
	_, _, err := ExpandIPs("10.0.0.0/8")
	require.Error(t, err)
	assert.Equal(t, errors.CodeParse, errors.GetCode(err))

	_, _, err = ExpandIPs("2001:db8::/64")
	require.Error(t, err)
	assert.Equal(t, errors.CodeParse, errors.GetCode(err))
}

func TestExpandIPsRange(t *testing.T) {
	spec, addrs, err := ExpandIPs("10.0.0.1-10.0.0.3")
	require.NoError(t, err)
	assert.Equal(t, KindRange, spec.Kind)

	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	require.Len(t, addrs, len(want))
	for i, w := range want {
		assert.Equal(t, w, addrs[i].String())
	}
}

func TestExpandIPsRangeAcrossOctet(t *testing.T) {
	_, addrs, err := ExpandIPs("192.168.1.254-192.168.2.1")
	require.NoError(t, err)
	want := []string{"192.168.1.254", "192.168.1.255", "192.168.2.0", "192.168.2.1"}
	require.Len(t, addrs, len(want))
	for i, w := range want {
		assert.Equal(t, w, addrs[i].String())
	}
}

func TestExpandIPsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not-an-ip"},
		{"bad octet", "999.1.1.1"},
		{"bad cidr", "192.168.1.0/33"},
		{"inverted range", "10.0.0.9-10.0.0.1"},
		{"ipv6 range", "2001:db8::1-2001:db8::9"},
		{"three part range", "1.2.3.4-5.6.7.8-9.10.11.12"},
		{"range bad start", "abc-10.0.0.1"},
		{"single dash only", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExpandIPs(tt.input)
			require.Error(t, err)
			assert.Equal(t, errors.CodeParse, errors.GetCode(err), "got: %v", err)
		})
	}
}

func TestExpandPorts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []uint16
	}{
		{"single port", "80", []uint16{80}},
		{"list", "22,80,443", []uint16{22, 80, 443}},
		{"range", "20-22", []uint16{20, 21, 22}},
		{"mixed", "20-22,80", []uint16{20, 21, 22, 80}},
		{"range then single", "1-5,8080", []uint16{1, 2, 3, 4, 5, 8080}},
		{"duplicates removed", "80,80,79-81", []uint16{80, 79, 81}},
		{"whitespace tolerated", " 22 , 80 ", []uint16{22, 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPorts(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandPortsCardinality(t *testing.T) {
	// Expanded count equals the sum of segment cardinalities, no duplicates.
	got, err := ExpandPorts("1-1000")
	require.NoError(t, err)
	assert.Len(t, got, 1000)

	seen := make(map[uint16]bool)
	for _, p := range got {
		assert.False(t, seen[p], "duplicate port %d", p)
		seen[p] = true
	}
}

func TestExpandPortsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"empty segment", "80,,443"},
		{"trailing comma", "80,"},
		{"non numeric", "http"},
		{"inverted", "100-50"},
		{"zero port", "0"},
		{"too high", "65536"},
		{"range too high", "65530-65536"},
		{"single range over cap", "1-10001"},
		{"cumulative over cap", "1-10000,10001-20000,20001-30000,30001-40000,40001-50000,50001-60000,60001-65535,1-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandPorts(tt.input)
			require.Error(t, err)
			assert.Equal(t, errors.CodeParse, errors.GetCode(err), "got: %v", err)
		})
	}
}

func TestExpandPortsAtCaps(t *testing.T) {
	// Exactly 10,000 ports in one range is allowed.
	got, err := ExpandPorts("1-10000")
	require.NoError(t, err)
	assert.Len(t, got, 10000)
}

func TestExpandWordlist(t *testing.T) {
	candidates := ExpandWordlist("Example.COM", []string{"www", "mail", "api"})
	assert.Equal(t, []string{"www.example.com", "mail.example.com", "api.example.com"}, candidates)
}

func TestDefaultWordlistUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, w := range DefaultWordlist {
		assert.False(t, seen[w], "duplicate wordlist entry %q", w)
		seen[w] = true
	}
	assert.NotEmpty(t, DefaultWordlist)
}

func TestGuardrail(t *testing.T) {
	assert.NoError(t, Guardrail(1000, 1000, false))
	assert.NoError(t, Guardrail(2000, 1000, true))

	err := Guardrail(1001, 1000, false)
	require.Error(t, err)
	assert.Equal(t, errors.CodeGuardrailExceeded, errors.GetCode(err))
	assert.Contains(t, err.Error(), "1001")
}

func TestGuardrailLargeBatchExample(t *testing.T) {
	// A 2,000 address batch is blocked without override and allowed with it.
	_, addrs, err := ExpandIPs("10.0.0.0-10.0.7.207")
	require.NoError(t, err)
	require.Len(t, addrs, 2000)

	err = Guardrail(len(addrs), 1000, false)
	require.Error(t, err)
	var gerr *errors.GuardrailError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 2000, gerr.Units)

	assert.NoError(t, Guardrail(len(addrs), 1000, true))
}

func TestUint32Conversion(t *testing.T) {
	for _, s := range []string{"0.0.0.0", "10.1.2.3", "255.255.255.255"} {
		addr := netip.MustParseAddr(s)
		assert.Equal(t, addr, uint32ToAddr(addrToUint32(addr)), fmt.Sprintf("round trip %s", s))
	}
}
