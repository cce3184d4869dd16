package ledger

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/identity"
)

// MongoLedger records votes in a MongoDB multi-document transaction. The
// deployment must be a replica set.
type MongoLedger struct {
	client     *mongo.Client
	users      *mongo.Collection
	candidates *mongo.Collection
}

// NewMongoLedger constructs a Mongo-backed ledger over db.
func NewMongoLedger(client *mongo.Client, db *mongo.Database) *MongoLedger {
	return &MongoLedger{
		client:     client,
		users:      db.Collection(identity.UsersCollection),
		candidates: db.Collection(ballot.CandidatesCollection),
	}
}

// Record runs the voter claim and the candidate append in one transaction.
// The transaction is driven manually so the driver never retries it.
func (l *MongoLedger) Record(ctx context.Context, voterID, candidateID string, at time.Time) (Receipt, error) {
	sess, err := l.client.StartSession()
	if err != nil {
		return Receipt{}, err
	}
	defer sess.EndSession(ctx)

	receipt := newReceipt(voterID, candidateID, at)
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	err = mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return err
		}
		if err := identity.MarkVotedIn(sc, l.users, voterID, receipt.VotedAt); err != nil {
			_ = sess.AbortTransaction(context.Background())
			if isWriteConflict(err) {
				// Another transaction holds the claim on this voter.
				return identity.ErrAlreadyVoted
			}
			return err
		}
		if err := ballot.AppendVoteIn(sc, l.candidates, candidateID, receipt.vote()); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		return sess.CommitTransaction(sc)
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(112) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}
