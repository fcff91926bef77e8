package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := n.RiskDataChanged(context.Background(), domain.CycleResult{CycleID: "c1"}, []domain.RiskChange{
		{AreaID: "a", From: domain.RiskLow, To: domain.RiskAssessment{Score: 90, Level: domain.RiskSevere}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "area_id=a")
	assert.Contains(t, buf.String(), `to=Severe`)
	assert.Contains(t, buf.String(), "cycle_id=c1")
}
