// Package mongodb implements the repositories on top of MongoDB.
package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/skytraining/core"
)

// objectID parses a hex id. Invalid ids can never match a document.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

func objectIDs(ids []string) []primitive.ObjectID {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			oids = append(oids, oid)
		}
	}
	return oids
}

func hexOrEmpty(oid primitive.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

// containsRegex matches documents whose field contains s, ignoring case.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// findOptions translates QueryOptions into driver options. sortable maps ordering fields to document keys;
// unknown fields are ignored. Results are always ordered by _id last for stable pagination.
func findOptions(opts core.QueryOptions, sortable map[string]string) *options.FindOptions {
	sort := make(bson.D, 0, len(opts.Orderings)+1)
	for _, ord := range opts.Orderings {
		key, ok := sortable[ord.Field]
		if !ok {
			continue
		}
		direction := -1
		if ord.Ascending {
			direction = 1
		}
		sort = append(sort, bson.E{Key: key, Value: direction})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	fo := options.Find().SetSort(sort)
	if opts.Offset > 0 {
		fo.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}
	return fo
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
