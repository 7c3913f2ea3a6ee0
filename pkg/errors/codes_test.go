package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/turtacn/regioflow/pkg/errors"
)

func TestSeverityForCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code errors.ErrorCode
		want errors.Severity
	}{
		{errors.CodeOK, errors.SeverityNone},
		{errors.CodeDataGap, errors.SeverityRecoverable},
		{errors.CodeMissingRatio, errors.SeverityRecoverable},
		{errors.CodeNegativeFlow, errors.SeverityRecoverable},
		{errors.CodeNoTemplate, errors.SeverityStructural},
		{errors.CodeUnknownCommodity, errors.SeverityStructural},
		{errors.CodeShareInvariant, errors.SeverityFatal},
		{errors.CodeNegativeVolume, errors.SeverityFatal},
		{errors.CodeDatabaseError, errors.SeverityFatal},
		{errors.ErrorCode("FUTURE_999"), errors.SeverityFatal},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.code.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, errors.SeverityForCode(tc.code))
		})
	}
}

func TestSeverityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", errors.SeverityNone.String())
	assert.Equal(t, "recoverable", errors.SeverityRecoverable.String())
	assert.Equal(t, "structural", errors.SeverityStructural.String())
	assert.Equal(t, "fatal", errors.SeverityFatal.String())
}

func TestModuleForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TRD", errors.ModuleForCode(errors.CodeDataGap))
	assert.Equal(t, "SEL", errors.ModuleForCode(errors.CodeShareInvariant))
	assert.Equal(t, "GRF", errors.ModuleForCode(errors.CodeNoTemplate))
	assert.Equal(t, "INF", errors.ModuleForCode(errors.CodeDatabaseError))
	assert.Equal(t, "OK", errors.ModuleForCode(errors.CodeOK))
}

func TestDefaultMessageForCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no template process for commodity", errors.DefaultMessageForCode(errors.CodeNoTemplate))
	assert.Equal(t, "unknown error", errors.DefaultMessageForCode(errors.ErrorCode("NOPE_000")))
}
