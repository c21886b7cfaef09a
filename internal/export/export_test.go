package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ava/internal/core"
)

func sampleDatapoint() core.TrainingDatapoint {
	startedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	createdAt := startedAt.Add(90 * time.Second)
	convAction := "applied_discount"
	gate := core.GateCooldownActive

	return core.TrainingDatapoint{
		ID:             "dp-1",
		InterventionID: "iv-1",
		SessionID:      "sess-1",
		SiteURL:        "shop.example.com",
		SessionContextSnapshot: core.Session{
			SessionID:    "sess-1",
			StartedAt:    startedAt,
			DeviceType:   core.DeviceMobile,
			ReferrerType: "organic",
			IsLoggedIn:   true,
			CartValue:    49.99,
			CartItemCount: 2,
			RunningCounters: core.SessionRunningCounters{
				TotalInterventionsFired: 3,
				TotalDismissals:         1,
				TotalConversions:        1,
			},
		},
		EventsSnapshot: []core.TrackEvent{
			{ID: "ev-1", PageType: core.PagePDP},
			{ID: "ev-2", PageType: core.PageCheckout},
		},
		Narrative:         "shopper stalled at checkout after a declined card",
		DetectedFrictions: []string{"F013", "F021"},
		Signals:           core.MSWIMSignals{Intent: 80, Friction: 90, Clarity: 60, Receptivity: 50, Value: 70},
		CompositeScore:    75.5,
		WeightsUsed:       core.DefaultScoringConfig().Weights,
		Decision:          core.DecisionFire,
		GateOverride:      &gate,
		InterventionType:  core.InterventionEscalate,
		ActionCode:        "offer_discount_10",
		FrictionID:        "F013",
		Outcome:           core.StatusConverted,
		ConversionAction:  &convAction,
		OutcomeDelayMs:    4200,
		CreatedAt:         createdAt,
	}
}

func TestWriteJSONLRoundTrips(t *testing.T) {
	dp := sampleDatapoint()
	var buf bytes.Buffer

	require.NoError(t, WriteJSONL(&buf, []core.TrainingDatapoint{dp}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)

	var got core.TrainingDatapoint
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, dp.ID, got.ID)
	assert.Equal(t, dp.CompositeScore, got.CompositeScore)
	assert.Equal(t, dp.DetectedFrictions, got.DetectedFrictions)
	assert.Equal(t, *dp.ConversionAction, *got.ConversionAction)
}

func TestWriteCSVHeaderMatchesSpecColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	r := csv.NewReader(&buf)
	header, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, csvColumns, header)
}

func TestWriteCSVRecordFields(t *testing.T) {
	dp := sampleDatapoint()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []core.TrainingDatapoint{dp}))

	r := csv.NewReader(&buf)
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rec := rows[1]
	byName := func(col string) string {
		for i, c := range csvColumns {
			if c == col {
				return rec[i]
			}
		}
		t.Fatalf("unknown column %q", col)
		return ""
	}

	assert.Equal(t, "dp-1", byName("id"))
	assert.Equal(t, "sess-1", byName("sessionId"))
	assert.Equal(t, "mobile", byName("deviceType"))
	assert.Equal(t, "true", byName("isLoggedIn"))
	assert.Equal(t, "false", byName("isRepeatVisitor"))
	assert.Equal(t, "90", byName("sessionAgeSec"))
	assert.Equal(t, "checkout", byName("pageType"))
	assert.Equal(t, "ESCALATE", byName("tier"))
	assert.Equal(t, "ESCALATE", byName("tierAtFire"))
	assert.Equal(t, "75.50", byName("compositeScore"))
	assert.Equal(t, "75.50", byName("mswimScoreAtFire"))
	assert.Equal(t, "COOLDOWN_ACTIVE", byName("gateOverride"))
	assert.Equal(t, "applied_discount", byName("conversionAction"))
	assert.Equal(t, "2", byName("frictionsFound"))
	assert.Equal(t, "3", byName("totalInterventionsFired"))
}

func TestWriteFineTuneJSONLShape(t *testing.T) {
	dp := sampleDatapoint()
	var buf bytes.Buffer
	require.NoError(t, WriteFineTuneJSONL(&buf, []core.TrainingDatapoint{dp}))

	var record fineTuneRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Len(t, record.Messages, 3)
	assert.Equal(t, "system", record.Messages[0].Role)
	assert.Equal(t, "user", record.Messages[1].Role)
	assert.Equal(t, "assistant", record.Messages[2].Role)

	var assistant fineTuneAssistantPayload
	require.NoError(t, json.Unmarshal([]byte(record.Messages[2].Content), &assistant))
	assert.Equal(t, dp.Narrative, assistant.Narrative)
	assert.Equal(t, dp.ActionCode, assistant.RecommendedAction)
	assert.Equal(t, dp.Signals, assistant.Signals)
	assert.Contains(t, assistant.Reasoning, "ESCALATE")

	var userCtx fineTuneUserContext
	require.NoError(t, json.Unmarshal([]byte(record.Messages[1].Content), &userCtx))
	assert.Len(t, userCtx.Events, 2)
}

func TestWriteCSVEmptyDatapointsWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []core.TrainingDatapoint{}))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
