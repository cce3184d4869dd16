package ballot

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CandidatesCollection is the Mongo collection holding candidate documents.
const CandidatesCollection = "candidates"

type voteDocument struct {
	ID      string    `bson:"_id"`
	User    string    `bson:"user"`
	VotedAt time.Time `bson:"votedAt"`
}

type candidateDocument struct {
	ID        string         `bson:"_id"`
	Name      string         `bson:"name"`
	Party     string         `bson:"party"`
	Age       int            `bson:"age"`
	Votes     []voteDocument `bson:"votes"`
	VoteCount int64          `bson:"voteCount"`
	CreatedAt time.Time      `bson:"createdAt"`
	UpdatedAt time.Time      `bson:"updatedAt"`
}

func (d candidateDocument) toCandidate() Candidate {
	c := Candidate{
		ID:        d.ID,
		Name:      d.Name,
		Party:     d.Party,
		Age:       d.Age,
		VoteCount: d.VoteCount,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	for _, v := range d.Votes {
		c.Votes = append(c.Votes, Vote{ID: v.ID, VoterID: v.User, VotedAt: v.VotedAt.UTC()})
	}
	return c
}

// MongoRepository implements Repository on a MongoDB database.
type MongoRepository struct {
	candidates *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{candidates: db.Collection(CandidatesCollection)}
}

// EnsureIndexes creates the indexes used by the sorted listings.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.candidates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "voteCount", Value: -1}, {Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	return err
}

func (r *MongoRepository) FindAll(ctx context.Context, order SortOrder) ([]Candidate, error) {
	var sortSpec bson.D
	switch order {
	case SortByName:
		sortSpec = bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: 1}}
	case SortByVotes:
		sortSpec = bson.D{{Key: "voteCount", Value: -1}, {Key: "name", Value: 1}}
	default:
		sortSpec = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	}
	cur, err := r.candidates.Find(ctx, bson.M{}, options.Find().SetSort(sortSpec))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Candidate
	for cur.Next(ctx) {
		var doc candidateDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toCandidate())
	}
	return out, cur.Err()
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (Candidate, error) {
	var doc candidateDocument
	if err := r.candidates.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Candidate{}, ErrCandidateNotFound
		}
		return Candidate{}, err
	}
	return doc.toCandidate(), nil
}

func (r *MongoRepository) Create(ctx context.Context, c Candidate) error {
	_, err := r.candidates.InsertOne(ctx, candidateDocument{
		ID:        c.ID,
		Name:      c.Name,
		Party:     c.Party,
		Age:       c.Age,
		Votes:     []voteDocument{},
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	})
	return err
}

func (r *MongoRepository) Update(ctx context.Context, id string, in CandidateInput) (Candidate, error) {
	var doc candidateDocument
	err := r.candidates.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": in.Name, "party": in.Party, "age": in.Age, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Candidate{}, ErrCandidateNotFound
	}
	if err != nil {
		return Candidate{}, err
	}
	return doc.toCandidate(), nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.candidates.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrCandidateNotFound
	}
	return nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.candidates.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) TotalVotes(ctx context.Context) (int64, error) {
	cur, err := r.candidates.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: bson.D{{Key: "$sum", Value: "$voteCount"}}}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *MongoRepository) AppendVote(ctx context.Context, candidateID string, vote Vote) error {
	return AppendVoteIn(ctx, r.candidates, candidateID, vote)
}

// AppendVoteIn pushes vote and increments voteCount in a single update on
// candidates. ctx may be a session context so the write joins a transaction.
func AppendVoteIn(ctx context.Context, candidates *mongo.Collection, candidateID string, vote Vote) error {
	res, err := candidates.UpdateOne(ctx,
		bson.M{"_id": candidateID},
		bson.M{
			"$push": bson.M{"votes": voteDocument{ID: vote.ID, User: vote.VoterID, VotedAt: vote.VotedAt.UTC()}},
			"$inc":  bson.M{"voteCount": 1},
			"$set":  bson.M{"updatedAt": vote.VotedAt.UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCandidateNotFound
	}
	return nil
}
