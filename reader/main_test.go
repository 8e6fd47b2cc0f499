package reader

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	// Malformed-input tests trigger warnings on purpose; keep the output quiet.
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}
