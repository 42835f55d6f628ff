package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/disaster-intake-api/config"
	"github.com/linesmerrill/disaster-intake-api/databases"
	"github.com/linesmerrill/disaster-intake-api/databases/mocks"
	"github.com/linesmerrill/disaster-intake-api/models"
)

func TestNewReportDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	reportDB := databases.NewReportDatabase(db)

	assert.NotEmpty(t, reportDB)
}

func TestReportDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(mongo.ErrNoDocuments)

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.EmergencyReport)
		(*arg).ReportID = "EMR-0000BEEF"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"report_id": "EMR-MISSING0"}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"report_id": "EMR-0000BEEF"}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "emergency_reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	report, err := reportDba.FindOne(context.Background(), bson.M{"report_id": "EMR-MISSING0"})

	assert.Empty(t, report)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	report, err = reportDba.FindOne(context.Background(), bson.M{"report_id": "EMR-0000BEEF"})

	assert.Equal(t, &models.EmergencyReport{ReportID: "EMR-0000BEEF"}, report)
	assert.NoError(t, err)
}

func TestReportDatabase_Find(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var crHelperErr databases.CursorHelper
	var crHelperCorrect databases.CursorHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	crHelperErr = &mocks.CursorHelper{}
	crHelperCorrect = &mocks.CursorHelper{}

	crHelperErr.(*mocks.CursorHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	crHelperCorrect.(*mocks.CursorHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.EmergencyReport)
		(*arg) = []models.EmergencyReport{{ReportID: "EMR-00000001"}, {ReportID: "EMR-00000002"}}
	})

	opts := databases.ListOptions(10, 2)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"status": "broken"}, opts).
		Return(crHelperErr, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"status": "pending"}, opts).
		Return(crHelperCorrect, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("Find", context.Background(), bson.M{"status": "offline"}, opts).
		Return(nil, errors.New("server selection timeout"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "emergency_reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	reports, err := reportDba.Find(context.Background(), bson.M{"status": "broken"}, opts)
	assert.Empty(t, reports)
	assert.EqualError(t, err, "mocked-error")

	reports, err = reportDba.Find(context.Background(), bson.M{"status": "offline"}, opts)
	assert.Empty(t, reports)
	assert.EqualError(t, err, "server selection timeout")

	reports, err = reportDba.Find(context.Background(), bson.M{"status": "pending"}, opts)
	assert.NoError(t, err)
	assert.Equal(t, []models.EmergencyReport{{ReportID: "EMR-00000001"}, {ReportID: "EMR-00000002"}}, reports)
}

func TestReportDatabase_UpdateOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	filter := bson.M{"report_id": "EMR-0000BEEF", "status": models.StatusPending}
	update := bson.M{"$set": bson.M{"status": models.StatusAcknowledged}}

	collectionHelper.On("UpdateOne", context.Background(), filter, update).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil).Once()
	collectionHelper.On("UpdateOne", context.Background(), filter, update).
		Return(nil, errors.New("write conflict")).Once()
	dbHelper.On("Collection", "emergency_reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	matched, err := reportDba.UpdateOne(context.Background(), filter, update)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	matched, err = reportDba.UpdateOne(context.Background(), filter, update)
	assert.EqualError(t, err, "write conflict")
	assert.Zero(t, matched)
}

func TestReportDatabase_EnsureIndexes(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	var created []mongo.IndexModel
	collectionHelper.On("CreateIndexes", context.Background(), mock.Anything).
		Return([]string{"report_id_unique"}, nil).
		Run(func(args mock.Arguments) {
			created = args.Get(1).([]mongo.IndexModel)
		})
	dbHelper.On("Collection", "emergency_reports").Return(collectionHelper)

	err := databases.NewReportDatabase(dbHelper).EnsureIndexes(context.Background())
	assert.NoError(t, err)

	if assert.NotEmpty(t, created) {
		assert.Equal(t, bson.D{{Key: "report_id", Value: 1}}, created[0].Keys)
		assert.True(t, *created[0].Options.Unique)
	}
}

func TestReportDatabase_InsertOneAndCount(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	report := &models.EmergencyReport{ReportID: "EMR-00000042", Status: models.StatusPending}

	insertResult.On("Decode").Return("6500000000000000000000aa")
	collectionHelper.On("InsertOne", context.Background(), report).Return(insertResult, nil)
	collectionHelper.On("CountDocuments", context.Background(), bson.M{"status": models.StatusPending}).Return(int64(3), nil)
	dbHelper.On("Collection", "emergency_reports").Return(collectionHelper)

	reportDba := databases.NewReportDatabase(dbHelper)

	res, err := reportDba.InsertOne(context.Background(), report)
	assert.NoError(t, err)
	assert.Equal(t, "6500000000000000000000aa", res.Decode())

	count, err := reportDba.CountDocuments(context.Background(), bson.M{"status": models.StatusPending})
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
