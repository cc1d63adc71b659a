package validators

import "go.mongodb.org/mongo-driver/bson"

const maxAdjustmentMinutes = 2880

var AdjustmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"date", "reservation_id"},
		"additionalProperties": true,
		"properties": bson.M{
			"date":           bson.M{"bsonType": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"reservation_id": bson.M{"bsonType": "string", "minLength": 1},
			"start_min":      bson.M{"bsonType": []string{"int", "long"}, "minimum": 0, "maximum": maxAdjustmentMinutes},
			"end_min":        bson.M{"bsonType": []string{"int", "long"}, "minimum": 0, "maximum": maxAdjustmentMinutes},
			"updated_at":     bson.M{"bsonType": "date"},
		},
	},
}
