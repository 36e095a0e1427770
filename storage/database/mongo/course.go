package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/storage/database"
)

var courseSortKeys = map[string]string{
	"title":              "title",
	"level":              "level",
	"category":           "category",
	"priceNumeric":       "priceNumeric",
	"currentEnrollments": "currentEnrollments",
	"createdAt":          "createdAt",
	"updatedAt":          "updatedAt",
}

type courseDocument struct {
	ID                      primitive.ObjectID          `bson:"_id,omitempty"`
	Title                   string                      `bson:"title"`
	Description             string                      `bson:"description"`
	Duration                string                      `bson:"duration"`
	Price                   string                      `bson:"price"`
	PriceNumeric            float64                     `bson:"priceNumeric"`
	Status                  string                      `bson:"status"`
	Category                string                      `bson:"category"`
	Level                   string                      `bson:"level"`
	Prerequisites           []string                    `bson:"prerequisites"`
	Curriculum              []course.CurriculumModule   `bson:"curriculum"`
	InstructorRequirements  string                      `bson:"instructorRequirements,omitempty"`
	AircraftRequirements    []string                    `bson:"aircraftRequirements"`
	MaxStudents             int                         `bson:"maxStudents"`
	CurrentEnrollments      int                         `bson:"currentEnrollments"`
	EstimatedCompletionTime course.CompletionTime       `bson:"estimatedCompletionTime"`
	Materials               []course.Material           `bson:"materials"`
	ExamRequirements        course.ExamRequirements     `bson:"examRequirements"`
	CertificationDetails    course.CertificationDetails `bson:"certificationDetails"`
	Tags                    []string                    `bson:"tags"`
	Image                   string                      `bson:"image,omitempty"`
	Featured                bool                        `bson:"featured"`
	CreatedBy               primitive.ObjectID          `bson:"createdBy,omitempty"`
	LastModifiedBy          primitive.ObjectID          `bson:"lastModifiedBy,omitempty"`
	CreatedAt               time.Time                   `bson:"createdAt"`
	UpdatedAt               time.Time                   `bson:"updatedAt"`
}

func newCourseDocument(c course.Course) courseDocument {
	doc := courseDocument{
		Title:                   c.Title,
		Description:             c.Description,
		Duration:                c.Duration,
		Price:                   c.Price,
		PriceNumeric:            c.PriceNumeric,
		Status:                  c.Status,
		Category:                c.Category,
		Level:                   c.Level,
		Prerequisites:           c.Prerequisites,
		Curriculum:              c.Curriculum,
		InstructorRequirements:  c.InstructorRequirements,
		AircraftRequirements:    c.AircraftRequirements,
		MaxStudents:             c.MaxStudents,
		CurrentEnrollments:      c.CurrentEnrollments,
		EstimatedCompletionTime: c.EstimatedCompletionTime,
		Materials:               c.Materials,
		ExamRequirements:        c.ExamRequirements,
		CertificationDetails:    c.CertificationDetails,
		Tags:                    c.Tags,
		Image:                   c.Image,
		Featured:                c.Featured,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
	doc.ID, _ = objectID(c.ID)
	doc.CreatedBy, _ = objectID(c.CreatedBy)
	doc.LastModifiedBy, _ = objectID(c.LastModifiedBy)
	return doc
}

func (doc courseDocument) course() course.Course {
	return course.Course{
		ID:                      hexOrEmpty(doc.ID),
		Title:                   doc.Title,
		Description:             doc.Description,
		Duration:                doc.Duration,
		Price:                   doc.Price,
		PriceNumeric:            doc.PriceNumeric,
		Status:                  doc.Status,
		Category:                doc.Category,
		Level:                   doc.Level,
		Prerequisites:           doc.Prerequisites,
		Curriculum:              doc.Curriculum,
		InstructorRequirements:  doc.InstructorRequirements,
		AircraftRequirements:    doc.AircraftRequirements,
		MaxStudents:             doc.MaxStudents,
		CurrentEnrollments:      doc.CurrentEnrollments,
		EstimatedCompletionTime: doc.EstimatedCompletionTime,
		Materials:               doc.Materials,
		ExamRequirements:        doc.ExamRequirements,
		CertificationDetails:    doc.CertificationDetails,
		Tags:                    doc.Tags,
		Image:                   doc.Image,
		Featured:                doc.Featured,
		CreatedBy:               hexOrEmpty(doc.CreatedBy),
		LastModifiedBy:          hexOrEmpty(doc.LastModifiedBy),
		CreatedAt:               doc.CreatedAt.UTC(),
		UpdatedAt:               doc.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	coll *mongo.Collection
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *mongo.Database) course.Repository {
	return &courseRepository{coll: db.Collection(database.CoursesCollection)}
}

func courseFilter(qf course.QueryFilter) bson.M {
	filter := bson.M{}
	if qf.IDs != nil {
		filter["_id"] = bson.M{"$in": objectIDs(qf.IDs)}
	}
	if len(qf.Statuses) > 0 {
		filter["status"] = bson.M{"$in": qf.Statuses}
	}
	if qf.Category != "" {
		filter["category"] = qf.Category
	}
	if qf.Level != "" {
		filter["level"] = qf.Level
	}
	if qf.Featured != nil {
		filter["featured"] = *qf.Featured
	}
	if qf.Search != "" {
		rx := containsRegex(qf.Search)
		filter["$or"] = bson.A{
			bson.M{"title": rx},
			bson.M{"description": rx},
			bson.M{"tags": rx},
		}
	}
	return filter
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	doc := newCourseDocument(c)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return doc.course(), nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	oid, ok := objectID(id)
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	var doc courseDocument
	if err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return doc.course(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, qf course.QueryFilter, opts core.QueryOptions) ([]course.Course, int, error) {
	filter := courseFilter(qf)
	total, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting courses")
	}

	cur, err := repo.coll.Find(ctx, filter, findOptions(opts, courseSortKeys))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying courses")
	}
	var docs []courseDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding courses")
	}

	courses := make([]course.Course, len(docs))
	for i, doc := range docs {
		courses[i] = doc.course()
	}
	return courses, int(total), nil
}

func (repo *courseRepository) CountCourses(ctx context.Context, qf course.QueryFilter) (int, error) {
	total, err := repo.coll.CountDocuments(ctx, courseFilter(qf))
	if err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return int(total), nil
}

// UpdateCourse leaves the seat counter and the creation stamps untouched.
func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	oid, ok := objectID(c.ID)
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	doc := newCourseDocument(c)
	update := bson.M{"$set": bson.M{
		"title":                   doc.Title,
		"description":             doc.Description,
		"duration":                doc.Duration,
		"price":                   doc.Price,
		"priceNumeric":            doc.PriceNumeric,
		"status":                  doc.Status,
		"category":                doc.Category,
		"level":                   doc.Level,
		"prerequisites":           doc.Prerequisites,
		"curriculum":              doc.Curriculum,
		"instructorRequirements":  doc.InstructorRequirements,
		"aircraftRequirements":    doc.AircraftRequirements,
		"maxStudents":             doc.MaxStudents,
		"estimatedCompletionTime": doc.EstimatedCompletionTime,
		"materials":               doc.Materials,
		"examRequirements":        doc.ExamRequirements,
		"certificationDetails":    doc.CertificationDetails,
		"tags":                    doc.Tags,
		"image":                   doc.Image,
		"featured":                doc.Featured,
		"lastModifiedBy":          doc.LastModifiedBy,
		"updatedAt":               doc.UpdatedAt,
	}}

	var updated courseDocument
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return updated.course(), nil
}

// ReserveSeat only matches an active course that still has room, so concurrent reservations
// can never exceed maxStudents.
func (repo *courseRepository) ReserveSeat(ctx context.Context, id string, at time.Time) (course.Course, error) {
	oid, ok := objectID(id)
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	filter := bson.M{
		"_id":    oid,
		"status": course.StatusActive,
		"$expr":  bson.M{"$lt": bson.A{"$currentEnrollments", "$maxStudents"}},
	}
	update := bson.M{
		"$inc": bson.M{"currentEnrollments": 1},
		"$set": bson.M{"updatedAt": at},
	}

	var doc courseDocument
	err := repo.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&doc)
	if err == nil {
		return doc.course(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return course.Course{}, errors.Wrap(err, "reserving seat")
	}

	// tell apart why nothing matched
	c, err := repo.GetCourseByID(ctx, id)
	switch {
	case err != nil:
		return course.Course{}, err
	case !c.IsActive():
		return course.Course{}, course.ErrCourseUnavailable
	default:
		return course.Course{}, course.ErrCourseFull
	}
}

func (repo *courseRepository) ReleaseSeat(ctx context.Context, id string, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return course.ErrNotFound
	}
	res, err := repo.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "currentEnrollments": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"currentEnrollments": -1}, "$set": bson.M{"updatedAt": at}},
	)
	if err != nil {
		return errors.Wrap(err, "releasing seat")
	}
	if res.MatchedCount == 0 {
		// either missing or already at zero
		if _, err = repo.GetCourseByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
