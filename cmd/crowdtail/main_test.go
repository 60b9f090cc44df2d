package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/queue"
)

func message(t *testing.T, kind string, data any) queue.Message {
	t.Helper()
	raw, err := json.Marshal(models.NewEvent(kind, data))
	require.NoError(t, err)
	var m queue.Message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func attrsOf(attrs []any) map[string]any {
	out := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		out[attrs[i].(string)] = attrs[i+1]
	}
	return out
}

func TestDescribe(t *testing.T) {
	counts := attrsOf(describe(message(t, models.EventCountUpdate, models.CrowdCount{Total: 3, Male: 1, Female: 2})))
	assert.Equal(t, 3, counts["total"])
	assert.Equal(t, 2, counts["female"])

	ad := models.AdRecord{AdAsset: models.AdAsset{ID: "MALE_001", DisplayName: "Sport"}, Audience: models.AudienceMale}
	shown := attrsOf(describe(message(t, models.EventShowAd, ad)))
	assert.Equal(t, "MALE_001", shown["ad_id"])
	assert.Equal(t, models.AudienceMale, shown["audience"])

	other := attrsOf(describe(message(t, "custom", []int{1, 2})))
	assert.Equal(t, 5, other["bytes"])
}

func TestSplitKinds(t *testing.T) {
	assert.Nil(t, splitKinds(""))
	assert.Equal(t, []string{"show_ad", "count_update"}, splitKinds("show_ad, count_update,"))
}
