package buddy

import (
	"os"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	// streamed tokens are compared as plain text
	color.NoColor = true
	os.Exit(m.Run())
}
