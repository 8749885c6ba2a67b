package leadflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/engine"
)

func TestNewProcessesEventOnFakes(t *testing.T) {
	lf, err := New(WithMetricsNamespace("leadflow_root_test"))
	require.NoError(t, err)
	defer lf.Close()

	raw, err := json.Marshal(map[string]string{
		"contact_id": "c-root",
		"event_id":   "evt-root-1",
		"body":       "I want to sell my house",
		"type":       "sms",
	})
	require.NoError(t, err)

	res, err := lf.ProcessEvent(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeProcessed, res.Outcome)
	assert.NotEmpty(t, res.Reply)
}
