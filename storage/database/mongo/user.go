package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
	"github.com/trezcool/skytraining/storage/database"
)

var userSortKeys = map[string]string{
	"firstName":   "firstName",
	"lastName":    "lastName",
	"email":       "email",
	"userType":    "userType",
	"flightHours": "flightHours",
	"createdAt":   "createdAt",
	"updatedAt":   "updatedAt",
	"lastLogin":   "lastLogin",
}

type userDocument struct {
	ID                 primitive.ObjectID      `bson:"_id,omitempty"`
	FirstName          string                  `bson:"firstName"`
	LastName           string                  `bson:"lastName"`
	Email              string                  `bson:"email"`
	Password           []byte                  `bson:"password"`
	Phone              string                  `bson:"phone"`
	UserType           string                  `bson:"userType"`
	Gender             string                  `bson:"gender,omitempty"`
	FlightHours        float64                 `bson:"flightHours"`
	Certificates       int                     `bson:"certificates"`
	IsActive           bool                    `bson:"isActive"`
	ProfileImage       string                  `bson:"profileImage,omitempty"`
	Address            user.Address            `bson:"address"`
	EmergencyContact   user.EmergencyContact   `bson:"emergencyContact"`
	MedicalCertificate user.MedicalCertificate `bson:"medicalCertificate"`
	LoginAttempts      int                     `bson:"loginAttempts"`
	LockUntil          *time.Time              `bson:"lockUntil,omitempty"`
	LastLogin          *time.Time              `bson:"lastLogin,omitempty"`
	CreatedAt          time.Time               `bson:"createdAt"`
	UpdatedAt          time.Time               `bson:"updatedAt"`
}

func newUserDocument(usr user.User) userDocument {
	doc := userDocument{
		FirstName:          usr.FirstName,
		LastName:           usr.LastName,
		Email:              usr.Email,
		Password:           usr.PasswordHash,
		Phone:              usr.Phone,
		UserType:           usr.Role,
		Gender:             usr.Gender,
		FlightHours:        usr.FlightHours,
		Certificates:       usr.Certificates,
		IsActive:           usr.IsActive,
		ProfileImage:       usr.ProfileImage,
		Address:            usr.Address,
		EmergencyContact:   usr.EmergencyContact,
		MedicalCertificate: usr.MedicalCertificate,
		LoginAttempts:      usr.LoginAttempts,
		LockUntil:          timePtr(usr.LockUntil),
		LastLogin:          timePtr(usr.LastLogin),
		CreatedAt:          usr.CreatedAt,
		UpdatedAt:          usr.UpdatedAt,
	}
	doc.ID, _ = objectID(usr.ID)
	return doc
}

func (doc userDocument) user() user.User {
	return user.User{
		ID:                 hexOrEmpty(doc.ID),
		FirstName:          doc.FirstName,
		LastName:           doc.LastName,
		Email:              doc.Email,
		PasswordHash:       doc.Password,
		Phone:              doc.Phone,
		Role:               doc.UserType,
		Gender:             doc.Gender,
		FlightHours:        doc.FlightHours,
		Certificates:       doc.Certificates,
		IsActive:           doc.IsActive,
		ProfileImage:       doc.ProfileImage,
		Address:            doc.Address,
		EmergencyContact:   doc.EmergencyContact,
		MedicalCertificate: doc.MedicalCertificate,
		LoginAttempts:      doc.LoginAttempts,
		LockUntil:          timeOrZero(doc.LockUntil),
		LastLogin:          timeOrZero(doc.LastLogin),
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{coll: db.Collection(database.UsersCollection)}
}

func userFilter(qf user.QueryFilter) bson.M {
	filter := bson.M{}
	if qf.IDs != nil {
		filter["_id"] = bson.M{"$in": objectIDs(qf.IDs)}
	}
	if len(qf.Roles) > 0 {
		filter["userType"] = bson.M{"$in": qf.Roles}
	}
	if qf.IsActive != nil {
		filter["isActive"] = *qf.IsActive
	}
	if !qf.CreatedFrom.IsZero() {
		filter["createdAt"] = bson.M{"$gte": qf.CreatedFrom}
	}
	if qf.Search != "" {
		rx := containsRegex(qf.Search)
		filter["$or"] = bson.A{
			bson.M{"firstName": rx},
			bson.M{"lastName": rx},
			bson.M{"email": rx},
		}
	}
	return filter
}

func (repo *userRepository) findOne(ctx context.Context, filter bson.M) (user.User, error) {
	var doc userDocument
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return doc.user(), nil
}

func (repo *userRepository) updateOne(ctx context.Context, id string, update interface{}) (user.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	var doc userDocument
	err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return user.User{}, user.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return user.User{}, user.ErrEmailExists
	case err != nil:
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return doc.user(), nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := newUserDocument(usr)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return doc.user(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return repo.findOne(ctx, bson.M{"_id": oid})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.findOne(ctx, bson.M{"email": email})
}

func (repo *userRepository) QueryUsers(ctx context.Context, qf user.QueryFilter, opts core.QueryOptions) ([]user.User, int, error) {
	filter := userFilter(qf)
	total, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	cur, err := repo.coll.Find(ctx, filter, findOptions(opts, userSortKeys))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}
	var docs []userDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding users")
	}

	users := make([]user.User, len(docs))
	for i, doc := range docs {
		users[i] = doc.user()
	}
	return users, int(total), nil
}

func (repo *userRepository) CountUsers(ctx context.Context, qf user.QueryFilter) (int, error) {
	total, err := repo.coll.CountDocuments(ctx, userFilter(qf))
	if err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return int(total), nil
}

// UpdateUser leaves the lockout state, last login & creation date untouched.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := newUserDocument(usr)
	return repo.updateOne(ctx, usr.ID, bson.M{"$set": bson.M{
		"firstName":          doc.FirstName,
		"lastName":           doc.LastName,
		"email":              doc.Email,
		"password":           doc.Password,
		"phone":              doc.Phone,
		"userType":           doc.UserType,
		"gender":             doc.Gender,
		"flightHours":        doc.FlightHours,
		"certificates":       doc.Certificates,
		"isActive":           doc.IsActive,
		"profileImage":       doc.ProfileImage,
		"address":            doc.Address,
		"emergencyContact":   doc.EmergencyContact,
		"medicalCertificate": doc.MedicalCertificate,
		"updatedAt":          doc.UpdatedAt,
	}})
}

// RecordLoginFailure increments the attempts and sets the lock in one pipeline update,
// so concurrent failures are all counted.
func (repo *userRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (user.User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"loginAttempts": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$loginAttempts", 0}}, 1}},
		}}},
		{{Key: "$set", Value: bson.M{
			"lockUntil": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$loginAttempts", maxAttempts}},
				lockUntil,
				"$lockUntil",
			}},
		}}},
	}
	return repo.updateOne(ctx, id, pipeline)
}

func (repo *userRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) (user.User, error) {
	return repo.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"loginAttempts": 0, "lastLogin": at},
		"$unset": bson.M{"lockUntil": ""},
	})
}

func (repo *userRepository) ResetLoginAttempts(ctx context.Context, id string) error {
	_, err := repo.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"loginAttempts": 0},
		"$unset": bson.M{"lockUntil": ""},
	})
	return err
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
