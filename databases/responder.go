package databases

// go generate: mockery --name ResponderDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/disaster-intake-api/models"
)

const responderName = "responders"

// ResponderDatabase contains the methods to use with the responder database
type ResponderDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Responder, error)
	InsertOne(context.Context, *models.Responder) (InsertOneResultHelper, error)
	EnsureIndexes(context.Context) error
}

type responderDatabase struct {
	db DatabaseHelper
}

// NewResponderDatabase initializes a new instance of responder database with the provided db connection
func NewResponderDatabase(db DatabaseHelper) ResponderDatabase {
	return &responderDatabase{
		db: db,
	}
}

func (r *responderDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Responder, error) {
	responder := &models.Responder{}
	err := r.db.Collection(responderName).FindOne(ctx, filter, opts...).Decode(&responder)
	if err != nil {
		return nil, err
	}
	return responder, nil
}

func (r *responderDatabase) InsertOne(ctx context.Context, responder *models.Responder) (InsertOneResultHelper, error) {
	return r.db.Collection(responderName).InsertOne(ctx, responder)
}

func (r *responderDatabase) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(responderName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
	})
	return err
}
