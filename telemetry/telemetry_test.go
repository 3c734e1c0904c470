package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frcnet/robotcom/logging"
	"github.com/frcnet/robotcom/state"
)

func TestSampleOnceInstallsTagData(t *testing.T) {
	st := state.New()
	c := NewCollector(st, logging.NewTestLogger(t), t.TempDir())

	c.sampleOnce()

	// ram and disk sampling work on any supported host; a nil value here
	// means the sample failed, which the collector logs rather than
	// propagating
	data := st.TagDataSnapshot()
	require.NotNil(t, data.RAM)
	require.NotNil(t, data.Disk)
}
