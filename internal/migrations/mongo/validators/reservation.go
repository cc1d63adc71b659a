package validators

import "go.mongodb.org/mongo-driver/bson"

var reservationStatuses = []string{
	"waiting",
	"confirmed",
	"arrived",
	"not_arrived",
	"cancelled",
	"pending",
}

var eventReservationStatuses = []string{
	"booked",
	"arrived",
	"not_arrived",
	"cancelled",
}

// reservationSchema is shared by both reservation collections; only the
// allowed statuses differ.
func reservationSchema(statuses []string, extraRequired ...string) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":             "object",
			"required":             append([]string{"date", "time", "number_of_guests", "status"}, extraRequired...),
			"additionalProperties": true,

			"properties": bson.M{
				"_id": bson.M{
					"bsonType": "string",
				},

				"date": bson.M{
					"bsonType": "string",
					"pattern":  `^\d{4}-\d{2}-\d{2}$`,
				},

				"time": bson.M{
					"bsonType": "string",
					"pattern":  `^\d{1,2}:\d{2}$`,
				},

				"number_of_guests": bson.M{
					"bsonType": []string{"int", "long"},
					"minimum":  1,
				},

				"table_ids": bson.M{
					"bsonType": "array",
					"items":    bson.M{"bsonType": "string"},
				},

				"status": bson.M{
					"enum": statuses,
				},

				"cleared": bson.M{
					"bsonType": "bool",
				},

				"is_deleted": bson.M{
					"bsonType": "bool",
				},

				"updated_at": bson.M{
					"bsonType": "date",
				},
			},
		},
	}
}

var ReservationValidator = reservationSchema(reservationStatuses)

var EventReservationValidator = reservationSchema(eventReservationStatuses, "event_id")
