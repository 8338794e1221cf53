package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestValidateRecordKey(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		version string
		field   string
	}{
		{"plain", "zlib", "1.3.1", ""},
		{"epoch version", "tzdata", "1:2024a", ""},
		{"plus in name", "gtk+", "3.24", ""},
		{"empty name", "", "1", "name"},
		{"dot", ".", "1", "name"},
		{"dot dot", "..", "1", "name"},
		{"colon", "perl:XML-Parser", "2.46", "name"},
		{"slash", "usr/zlib", "1", "name"},
		{"backslash", `a\b`, "1", "name"},
		{"tab", "a\tb", "1", "name"},
		{"empty version", "zlib", "", "version"},
		{"newline version", "zlib", "1.3\nopenssl:9", "version"},
		{"slash version", "zlib", "../1", "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateRecordKey(tt.pkg, tt.version)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, domain.ErrInvalidPackage)
			var zErr *zerr.Error
			require.ErrorAs(t, err, &zErr)
			assert.Equal(t, tt.field, zErr.Metadata()["field"])
		})
	}
}

func TestPackage_ValidateRejectsReservedName(t *testing.T) {
	p := pkg("perl:XML-Parser", "2.46")
	require.ErrorIs(t, p.Validate(), domain.ErrInvalidPackage)

	require.NoError(t, pkg("perl-XML-Parser", "2.46").Validate())
}
