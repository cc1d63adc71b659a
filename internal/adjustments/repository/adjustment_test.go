package repository

import (
	"testing"
	"time"

	"seatflow/pkg/model"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUpsertUpdate_OnlyProvidedBounds(t *testing.T) {
	now := time.Date(2024, 5, 1, 21, 5, 0, 0, time.UTC)

	tests := []struct {
		name  string
		patch model.DurationAdjustment
		want  bson.M
	}{
		{
			name:  "end only",
			patch: model.DurationAdjustment{End: model.Some(1280)},
			want:  bson.M{"updated_at": now, "end_min": 1280},
		},
		{
			name:  "both with explicit midnight start",
			patch: model.DurationAdjustment{Start: model.Some(0), End: model.Some(45)},
			want:  bson.M{"updated_at": now, "start_min": 0, "end_min": 45},
		},
		{
			name:  "empty touches timestamp only",
			patch: model.DurationAdjustment{},
			want:  bson.M{"updated_at": now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := upsertUpdate(tt.patch, now)
			assert.Equal(t, bson.M{"$set": tt.want}, got)
		})
	}
}

func TestDocumentAdjustment(t *testing.T) {
	end := 1450
	doc := document{Date: "2024-05-01", ReservationID: "r1", EndMin: &end}

	adj := doc.adjustment()

	assert.False(t, adj.Start.IsSet())
	assert.Equal(t, model.Some(1450), adj.End)
}

func TestDocumentBSONOmitsMissingBounds(t *testing.T) {
	raw, err := bson.Marshal(document{Date: "2024-05-01", ReservationID: "r1"})
	assert.NoError(t, err)

	var m bson.M
	assert.NoError(t, bson.Unmarshal(raw, &m))
	assert.NotContains(t, m, "start_min")
	assert.NotContains(t, m, "end_min")
}
