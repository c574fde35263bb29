package revdns

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/target"
)

type fakeResolver struct {
	ptrs map[string][]string
	errs map[string]error
}

func (f *fakeResolver) LookupPTR(ctx context.Context, addr netip.Addr) ([]string, error) {
	key := addr.String()
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if names, ok := f.ptrs[key]; ok {
		return names, nil
	}
	return nil, errors.NewProbeErrorWithTarget(errors.CodeNoRecord, "no PTR record", key)
}

func (f *fakeResolver) LookupHost(ctx context.Context, name string) ([]netip.Addr, error) {
	return nil, errors.ErrNoRecord(name)
}

func testSettings() config.Settings {
	return config.Default().Settings
}

func TestRunSingleAddress(t *testing.T) {
	resolver := &fakeResolver{ptrs: map[string][]string{
		"192.0.2.1": {"gw.example.com"},
	}}
	runner := NewRunner(testSettings(), resolver)

	result, err := runner.Run(context.Background(), "192.0.2.1", Options{})
	require.NoError(t, err)

	assert.Equal(t, target.KindSingleIP, result.Kind)
	assert.Equal(t, 1, result.Expanded)
	require.Len(t, result.Records, 1)
	assert.Equal(t, []string{"gw.example.com"}, result.Records[0].Hostnames)
	assert.Zero(t, result.NoRecord)
	assert.Zero(t, result.Errors)
}

func TestRunCIDRPartialRecords(t *testing.T) {
	resolver := &fakeResolver{
		ptrs: map[string][]string{
			"192.0.2.1": {"a.example.com"},
			"192.0.2.2": {"b.example.com", "b2.example.com"},
		},
		errs: map[string]error{
			"192.0.2.3": errors.NewProbeError(errors.CodeNetwork, "servfail"),
		},
	}
	runner := NewRunner(testSettings(), resolver)

	result, err := runner.Run(context.Background(), "192.0.2.0/30", Options{})
	require.NoError(t, err)

	assert.Equal(t, target.KindCIDR, result.Kind)
	assert.Equal(t, 4, result.Expanded)
	require.Len(t, result.Records, 2)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), result.Records[0].Addr)
	assert.Equal(t, []string{"b.example.com", "b2.example.com"}, result.Records[1].Hostnames)
	assert.Equal(t, 1, result.NoRecord) // .0 has no entry in the fake
	assert.Equal(t, 1, result.Errors)   // .3 failed with a network error
	assert.Len(t, result.Outcomes, 4)
}

func TestRunMissingPTRIsNegativeNotError(t *testing.T) {
	runner := NewRunner(testSettings(), &fakeResolver{})

	result, err := runner.Run(context.Background(), "192.0.2.9", Options{})
	require.NoError(t, err)

	assert.Empty(t, result.Records)
	assert.Equal(t, 1, result.NoRecord)
	assert.Zero(t, result.Errors)
}

func TestRunInvalidTarget(t *testing.T) {
	runner := NewRunner(testSettings(), &fakeResolver{})

	_, err := runner.Run(context.Background(), "not an ip", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsPreflight(err))
}

func TestRunGuardrail(t *testing.T) {
	settings := testSettings()
	settings.GuardrailMaxUnits = 100
	runner := NewRunner(settings, &fakeResolver{})

	// A /24 expands to 256 addresses, over the ceiling of 100.
	_, err := runner.Run(context.Background(), "192.0.2.0/24", Options{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeGuardrailExceeded, errors.GetCode(err))

	result, err := runner.Run(context.Background(), "192.0.2.0/24", Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 256, result.Expanded)
}

func TestRunDashRange(t *testing.T) {
	resolver := &fakeResolver{ptrs: map[string][]string{
		"10.0.0.2": {"two.internal"},
	}}
	runner := NewRunner(testSettings(), resolver)

	result, err := runner.Run(context.Background(), "10.0.0.1-10.0.0.3", Options{})
	require.NoError(t, err)

	assert.Equal(t, target.KindRange, result.Kind)
	assert.Equal(t, 3, result.Expanded)
	require.Len(t, result.Records, 1)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), result.Records[0].Addr)
}
