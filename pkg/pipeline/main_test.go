package pipeline

import (
	"testing"

	"go.uber.org/goleak"
)

// The genai client pulls in opencensus, whose view worker starts in init.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}
