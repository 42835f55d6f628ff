package databases

// go generate: mockery --name ReportDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/disaster-intake-api/models"
)

const reportName = "emergency_reports"

// ReportDatabase contains the methods to use with the emergency report database
type ReportDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.EmergencyReport, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.EmergencyReport, error)
	InsertOne(context.Context, *models.EmergencyReport) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	CountDocuments(context.Context, interface{}) (int64, error)
	DeleteMany(context.Context, interface{}) (int64, error)
	EnsureIndexes(context.Context) error
}

type reportDatabase struct {
	db DatabaseHelper
}

// NewReportDatabase initializes a new instance of report database with the provided db connection
func NewReportDatabase(db DatabaseHelper) ReportDatabase {
	return &reportDatabase{
		db: db,
	}
}

func (r *reportDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.EmergencyReport, error) {
	report := &models.EmergencyReport{}
	err := r.db.Collection(reportName).FindOne(ctx, filter, opts...).Decode(&report)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *reportDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.EmergencyReport, error) {
	var reports []models.EmergencyReport
	cr, err := r.db.Collection(reportName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&reports)
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportDatabase) InsertOne(ctx context.Context, report *models.EmergencyReport) (InsertOneResultHelper, error) {
	return r.db.Collection(reportName).InsertOne(ctx, report)
}

// UpdateOne returns the number of documents the filter matched
func (r *reportDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := r.db.Collection(reportName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *reportDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return r.db.Collection(reportName).CountDocuments(ctx, filter)
}

func (r *reportDatabase) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return r.db.Collection(reportName).DeleteMany(ctx, filter)
}

func (r *reportDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(reportName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("report_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "priority_score", Value: -1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_priority"),
		},
		{
			Keys:    bson.D{{Key: "priority_score", Value: -1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("priority"),
		},
		{
			Keys:    bson.D{{Key: "phone_number", Value: 1}},
			Options: options.Index().SetName("phone_number"),
		},
	})
	return err
}
