package valueobjects_test

import (
	"testing"

	"comments-api/domain/core/valueobjects"
	pkgerrors "comments-api/pkg/errors"
	"comments-api/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSourceFactory() *valueobjects.SourceFactory {
	return valueobjects.NewSourceFactory(utils.IPValidatorFunc(utils.IsValidIP))
}

func TestMakeSource(t *testing.T) {
	tests := []struct {
		name    string
		fields  valueobjects.SourceFields
		wantErr error
	}{
		{name: "ipv4", fields: valueobjects.SourceFields{IP: "127.0.0.1"}},
		{name: "ipv6", fields: valueobjects.SourceFields{IP: "2001:db8::1"}},
		{name: "missing ip", fields: valueobjects.SourceFields{Browser: "curl"}, wantErr: pkgerrors.ErrMissingOriginIP},
		{name: "invalid ip", fields: valueobjects.SourceFields{IP: "not-an-ip"}, wantErr: pkgerrors.ErrInvalidOriginIP},
		{name: "out of range octet", fields: valueobjects.SourceFields{IP: "256.1.1.1"}, wantErr: pkgerrors.ErrInvalidOriginIP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := newSourceFactory().MakeSource(tt.fields)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.fields.IP, src.IP())
		})
	}
}

func TestMakeSource_KeepsOptionalFields(t *testing.T) {
	src, err := newSourceFactory().MakeSource(valueobjects.SourceFields{
		IP:       "10.0.0.1",
		Browser:  "Mozilla/5.0",
		Referrer: "https://example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0", src.Browser())
	assert.Equal(t, "https://example.com", src.Referrer())
	assert.Equal(t, valueobjects.SourceFields{IP: "10.0.0.1", Browser: "Mozilla/5.0", Referrer: "https://example.com"}, src.Fields())
}

func TestMakeSource_UsesInjectedPredicate(t *testing.T) {
	onlyLoopback := valueobjects.NewSourceFactory(utils.IPValidatorFunc(func(ip string) bool {
		return ip == "127.0.0.1"
	}))

	_, err := onlyLoopback.MakeSource(valueobjects.SourceFields{IP: "10.0.0.1"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidOriginIP)

	_, err = onlyLoopback.MakeSource(valueobjects.SourceFields{IP: "127.0.0.1"})
	assert.NoError(t, err)
}
