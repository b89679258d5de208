package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "3000000", want: 3000000},
		{in: "3,000,000", want: 3000000},
		{in: " 3,000,000원 ", want: 3000000},
		{in: "₩12,500", want: 12500},
		{in: "-120,000", want: -120000},
		{in: "1 000", want: 1000},
		{in: "1500.00", want: 1500},
		{in: "0", want: 0},
		{in: "", wantErr: true},
		{in: "원", wantErr: true},
		{in: "12.5", wantErr: true},
		{in: "이십만원", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrMalformedItem)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 85.71, Percent(3000000, 3500000))
	assert.Equal(t, 14.29, Percent(500000, 3500000))
	assert.Equal(t, 100.0, Percent(5, 5))
	assert.Equal(t, 0.0, Percent(5, 0))
	assert.Equal(t, -3.33, Percent(-100000, 3000000))
}
