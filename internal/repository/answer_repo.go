package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"provsurvey/internal/model"
)

// AnswerRepository is the durable answer store.
//
// Save replaces every field of one (respondent, question) pair at once.
// Erase is idempotent. Get returns an empty map when nothing is stored.
// Every failure is returned as a *model.StorageError.
type AnswerRepository interface {
	Save(ctx context.Context, respondentID, questionID string, fields model.Fields) error
	Erase(ctx context.Context, respondentID string, questionIDs ...string) error
	Get(ctx context.Context, respondentID, questionID string) (model.Fields, error)
	ListByRespondent(ctx context.Context, respondentID string) ([]model.Answer, error)
	ListAll(ctx context.Context) ([]model.Answer, error)
}

// answerDoc stores one (respondent, question) pair; a single-document
// replace is atomic, so the whole field set changes in one write
type answerDoc struct {
	RespondentID string       `bson:"respondentId"`
	QuestionID   string       `bson:"questionId"`
	Fields       []fieldValue `bson:"fields"`
	CreatedAt    time.Time    `bson:"createdAt"`
}

type fieldValue struct {
	Name  string `bson:"name"`
	Value string `bson:"value"`
}

type mongoAnswerRepo struct {
	collection *mongo.Collection
	log        *zap.Logger
}

// NewMongoAnswerRepository creates the document-backed store and its indexes
func NewMongoAnswerRepository(db *mongo.Database, log *zap.Logger) AnswerRepository {
	if log == nil {
		log = zap.NewNop()
	}
	repo := &mongoAnswerRepo{
		collection: db.Collection("answers"),
		log:        log,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *mongoAnswerRepo) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "respondentId", Value: 1}, {Key: "questionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.log.Warn("failed to create answer indexes", zap.Error(err))
	}
}

func (r *mongoAnswerRepo) Save(ctx context.Context, respondentID, questionID string, fields model.Fields) error {
	doc := answerDoc{
		RespondentID: respondentID,
		QuestionID:   questionID,
		CreatedAt:    time.Now().UTC(),
	}
	for _, name := range sortedKeys(fields) {
		if v := fields[name]; v != "" {
			doc.Fields = append(doc.Fields, fieldValue{Name: name, Value: v})
		}
	}
	filter := bson.M{"respondentId": respondentID, "questionId": questionID}
	if len(doc.Fields) == 0 {
		_, err := r.collection.DeleteOne(ctx, filter)
		return model.NewStorageError("save answer", err)
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, filter, doc, opts)
	return model.NewStorageError("save answer", err)
}

func (r *mongoAnswerRepo) Erase(ctx context.Context, respondentID string, questionIDs ...string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"respondentId": respondentID,
		"questionId":   bson.M{"$in": questionIDs},
	})
	return model.NewStorageError("erase answers", err)
}

func (r *mongoAnswerRepo) Get(ctx context.Context, respondentID, questionID string) (model.Fields, error) {
	var doc answerDoc
	err := r.collection.FindOne(ctx, bson.M{"respondentId": respondentID, "questionId": questionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return model.Fields{}, nil
	}
	if err != nil {
		return nil, model.NewStorageError("get answer", err)
	}
	fields := make(model.Fields, len(doc.Fields))
	for _, f := range doc.Fields {
		fields[f.Name] = f.Value
	}
	return fields, nil
}

func (r *mongoAnswerRepo) ListByRespondent(ctx context.Context, respondentID string) ([]model.Answer, error) {
	return r.find(ctx, bson.M{"respondentId": respondentID}, "list respondent answers")
}

func (r *mongoAnswerRepo) ListAll(ctx context.Context) ([]model.Answer, error) {
	return r.find(ctx, bson.M{}, "list answers")
}

func (r *mongoAnswerRepo) find(ctx context.Context, filter bson.M, op string) ([]model.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, model.NewStorageError(op, err)
	}
	defer cursor.Close(ctx)

	var docs []answerDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.NewStorageError(op, err)
	}
	var answers []model.Answer
	for _, d := range docs {
		for _, f := range d.Fields {
			answers = append(answers, model.Answer{
				RespondentID: d.RespondentID,
				QuestionID:   d.QuestionID,
				Field:        f.Name,
				Value:        f.Value,
				CreatedAt:    d.CreatedAt,
			})
		}
	}
	return answers, nil
}
