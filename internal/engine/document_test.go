package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/iecat/internal/common"
)

func TestDecodeDocument(t *testing.T) {
	items, err := DecodeDocument([]byte(`{"급여": 3000000, "보너스": "500,000", "식대": null, "이자": -1.0}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"급여":  "3000000",
		"보너스": "500,000",
		"식대":  "",
		"이자":  "-1.0",
	}, items)

	for _, bad := range []string{`[1, 2]`, `null`, `{"a": {"b": 1}}`, `{"a": true}`, `not json`} {
		_, err := DecodeDocument([]byte(bad))
		require.Error(t, err, bad)
		var userErr *common.UserError
		assert.ErrorAs(t, err, &userErr, bad)
	}
}
