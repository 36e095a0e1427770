package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/storage/database"
)

var enrollmentSortKeys = map[string]string{
	"enrollmentDate": "enrollmentDate",
	"status":         "status",
	"createdAt":      "createdAt",
	"updatedAt":      "updatedAt",
}

type enrollmentDocument struct {
	ID             primitive.ObjectID      `bson:"_id,omitempty"`
	Student        primitive.ObjectID      `bson:"student"`
	Course         primitive.ObjectID      `bson:"course"`
	EnrollmentDate time.Time               `bson:"enrollmentDate"`
	Status         string                  `bson:"status"`
	Payment        enrollment.Payment      `bson:"payment"`
	AcademicInfo   enrollment.AcademicInfo `bson:"academicInfo"`
	Progress       enrollment.Progress     `bson:"progress"`
	Schedule       []enrollment.Session    `bson:"schedule"`
	Documents      []enrollment.Document   `bson:"documents"`
	Notes          []enrollment.Note       `bson:"notes"`
	Completion     enrollment.Completion   `bson:"completion"`
	CreatedAt      time.Time               `bson:"createdAt"`
	UpdatedAt      time.Time               `bson:"updatedAt"`
}

func newEnrollmentDocument(e enrollment.Enrollment) enrollmentDocument {
	doc := enrollmentDocument{
		EnrollmentDate: e.EnrollmentDate,
		Status:         e.Status,
		Payment:        e.Payment,
		AcademicInfo:   e.AcademicInfo,
		Progress:       e.Progress,
		Schedule:       e.Schedule,
		Documents:      e.Documents,
		Notes:          e.Notes,
		Completion:     e.Completion,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	doc.ID, _ = objectID(e.ID)
	doc.Student, _ = objectID(e.StudentID)
	doc.Course, _ = objectID(e.CourseID)
	return doc
}

func (doc enrollmentDocument) enrollment() enrollment.Enrollment {
	return enrollment.Enrollment{
		ID:             hexOrEmpty(doc.ID),
		StudentID:      hexOrEmpty(doc.Student),
		CourseID:       hexOrEmpty(doc.Course),
		EnrollmentDate: doc.EnrollmentDate.UTC(),
		Status:         doc.Status,
		Payment:        doc.Payment,
		AcademicInfo:   doc.AcademicInfo,
		Progress:       doc.Progress,
		Schedule:       doc.Schedule,
		Documents:      doc.Documents,
		Notes:          doc.Notes,
		Completion:     doc.Completion,
		CreatedAt:      doc.CreatedAt.UTC(),
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}
}

// summaryDocument decodes the fields kept by summaryProjection.
type summaryDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	Student        primitive.ObjectID `bson:"student"`
	Course         primitive.ObjectID `bson:"course"`
	EnrollmentDate time.Time          `bson:"enrollmentDate"`
	Status         string             `bson:"status"`
	Payment        struct {
		Mode          string  `bson:"mode"`
		PaymentStatus string  `bson:"paymentStatus"`
		TotalAmount   float64 `bson:"totalAmount"`
		AmountPaid    float64 `bson:"amountPaid"`
	} `bson:"payment"`
}

var summaryProjection = bson.M{
	"student":               1,
	"course":                1,
	"enrollmentDate":        1,
	"status":                1,
	"payment.mode":          1,
	"payment.paymentStatus": 1,
	"payment.totalAmount":   1,
	"payment.amountPaid":    1,
}

func (doc summaryDocument) summary() enrollment.Summary {
	return enrollment.Summary{
		ID:             hexOrEmpty(doc.ID),
		StudentID:      hexOrEmpty(doc.Student),
		CourseID:       hexOrEmpty(doc.Course),
		EnrollmentDate: doc.EnrollmentDate.UTC(),
		Status:         doc.Status,
		PaymentMode:    doc.Payment.Mode,
		PaymentStatus:  doc.Payment.PaymentStatus,
		TotalAmount:    doc.Payment.TotalAmount,
		AmountPaid:     doc.Payment.AmountPaid,
	}
}

type enrollmentRepository struct {
	coll *mongo.Collection
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *mongo.Database) enrollment.Repository {
	return &enrollmentRepository{coll: db.Collection(database.EnrollmentsCollection)}
}

func enrollmentFilter(qf enrollment.QueryFilter) bson.M {
	filter := bson.M{}
	if qf.IDs != nil {
		filter["_id"] = bson.M{"$in": objectIDs(qf.IDs)}
	}
	if qf.StudentIDs != nil {
		filter["student"] = bson.M{"$in": objectIDs(qf.StudentIDs)}
	}
	if qf.CourseIDs != nil {
		filter["course"] = bson.M{"$in": objectIDs(qf.CourseIDs)}
	}
	if len(qf.Statuses) > 0 {
		filter["status"] = bson.M{"$in": qf.Statuses}
	}
	if qf.PaymentStatus != "" {
		filter["payment.paymentStatus"] = qf.PaymentStatus
	}
	if !qf.EnrolledFrom.IsZero() {
		filter["enrollmentDate"] = bson.M{"$gte": qf.EnrolledFrom}
	}
	return filter
}

func (repo *enrollmentRepository) findOne(ctx context.Context, filter bson.M) (enrollment.Enrollment, error) {
	var doc enrollmentDocument
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return doc.enrollment(), nil
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	doc := newEnrollmentDocument(e)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return enrollment.Enrollment{}, enrollment.ErrDuplicate
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return doc.enrollment(), nil
}

func (repo *enrollmentRepository) GetEnrollmentByID(ctx context.Context, id string) (enrollment.Enrollment, error) {
	oid, ok := objectID(id)
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return repo.findOne(ctx, bson.M{"_id": oid})
}

func (repo *enrollmentRepository) FindEnrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	student, ok := objectID(studentID)
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	crs, ok := objectID(courseID)
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return repo.findOne(ctx, bson.M{"student": student, "course": crs})
}

func (repo *enrollmentRepository) QueryEnrollments(
	ctx context.Context,
	qf enrollment.QueryFilter,
	opts core.QueryOptions,
) ([]enrollment.Enrollment, int, error) {
	filter := enrollmentFilter(qf)
	total, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting enrollments")
	}

	cur, err := repo.coll.Find(ctx, filter, findOptions(opts, enrollmentSortKeys))
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying enrollments")
	}
	var docs []enrollmentDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding enrollments")
	}

	enrs := make([]enrollment.Enrollment, len(docs))
	for i, doc := range docs {
		enrs[i] = doc.enrollment()
	}
	return enrs, int(total), nil
}

func (repo *enrollmentRepository) CountEnrollments(ctx context.Context, qf enrollment.QueryFilter) (int, error) {
	total, err := repo.coll.CountDocuments(ctx, enrollmentFilter(qf))
	if err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return int(total), nil
}

// SummarizeEnrollments only fetches the fields of summaryProjection.
func (repo *enrollmentRepository) SummarizeEnrollments(ctx context.Context, qf enrollment.QueryFilter) ([]enrollment.Summary, error) {
	cur, err := repo.coll.Find(ctx, enrollmentFilter(qf), options.Find().SetProjection(summaryProjection))
	if err != nil {
		return nil, errors.Wrap(err, "summarizing enrollments")
	}
	var docs []summaryDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding enrollment summaries")
	}

	sums := make([]enrollment.Summary, len(docs))
	for i, doc := range docs {
		sums[i] = doc.summary()
	}
	return sums, nil
}

// UpdateEnrollment leaves the student, course & creation date untouched.
func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	oid, ok := objectID(e.ID)
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	doc := newEnrollmentDocument(e)
	update := bson.M{"$set": bson.M{
		"enrollmentDate": doc.EnrollmentDate,
		"status":         doc.Status,
		"payment":        doc.Payment,
		"academicInfo":   doc.AcademicInfo,
		"progress":       doc.Progress,
		"schedule":       doc.Schedule,
		"documents":      doc.Documents,
		"notes":          doc.Notes,
		"completion":     doc.Completion,
		"updatedAt":      doc.UpdatedAt,
	}}

	var updated enrollmentDocument
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return enrollment.Enrollment{}, enrollment.ErrNotFound
		}
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return updated.enrollment(), nil
}
