package guard

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForcesTestModeFlag(t *testing.T) {
	require.NotEmpty(t, os.Getenv("FORMULAPM_TEST_MODE"))
}
