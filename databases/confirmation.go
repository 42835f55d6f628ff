package databases

// go generate: mockery --name ConfirmationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/disaster-intake-api/models"
)

const confirmationName = "confirmations"

// ConfirmationDatabase contains the methods to use with the outbound confirmation outbox
type ConfirmationDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Confirmation, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Confirmation, error)
	InsertOne(context.Context, *models.Confirmation) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
	EnsureIndexes(context.Context) error
}

type confirmationDatabase struct {
	db DatabaseHelper
}

// NewConfirmationDatabase initializes a new instance of confirmation database with the provided db connection
func NewConfirmationDatabase(db DatabaseHelper) ConfirmationDatabase {
	return &confirmationDatabase{
		db: db,
	}
}

func (c *confirmationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Confirmation, error) {
	confirmation := &models.Confirmation{}
	err := c.db.Collection(confirmationName).FindOne(ctx, filter, opts...).Decode(&confirmation)
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

func (c *confirmationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Confirmation, error) {
	var confirmations []models.Confirmation
	cr, err := c.db.Collection(confirmationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&confirmations)
	if err != nil {
		return nil, err
	}
	return confirmations, nil
}

func (c *confirmationDatabase) InsertOne(ctx context.Context, confirmation *models.Confirmation) (InsertOneResultHelper, error) {
	return c.db.Collection(confirmationName).InsertOne(ctx, confirmation)
}

func (c *confirmationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := c.db.Collection(confirmationName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (c *confirmationDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(confirmationName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "delivered", Value: 1}, {Key: "next_attempt_at", Value: 1}},
			Options: options.Index().SetName("pending_delivery"),
		},
		{
			Keys:    bson.D{{Key: "report_id", Value: 1}},
			Options: options.Index().SetName("report_id"),
		},
	})
	return err
}
