package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternal_KeepsBothKinds(t *testing.T) {
	err := External("embed query", io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "embed query")
}

func TestIngestion_KeepsCause(t *testing.T) {
	cause := errors.New("no such directory")
	err := Ingestion("read Documents", cause)

	assert.ErrorIs(t, err, ErrIngestion)
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.Is(err, ErrConfiguration))
}

func TestConfiguration_FormatsMessage(t *testing.T) {
	err := Configuration("missing %s", "GEMINI_API_KEY")

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "configuration error: missing GEMINI_API_KEY", err.Error())
}
