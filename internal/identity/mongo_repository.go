package identity

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersCollection is the Mongo collection holding user documents.
const UsersCollection = "users"

type userDocument struct {
	ID         string    `bson:"_id"`
	Name       string    `bson:"name"`
	Age        int       `bson:"age"`
	Email      string    `bson:"email"`
	Mobile     string    `bson:"mobile"`
	NationalID string    `bson:"nationalId"`
	Address    string    `bson:"address"`
	Password   string    `bson:"password,omitempty"`
	Role       string    `bson:"role"`
	IsBlocked  bool      `bson:"isBlocked"`
	IsVoted    bool      `bson:"isVoted"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d userDocument) toUser() User {
	user := User{
		ID:         d.ID,
		Name:       d.Name,
		Age:        d.Age,
		Email:      d.Email,
		Mobile:     d.Mobile,
		NationalID: d.NationalID,
		Address:    d.Address,
		Role:       Role(d.Role),
		IsBlocked:  d.IsBlocked,
		IsVoted:    d.IsVoted,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.Password != "" {
		user.PasswordHash = []byte(d.Password)
	}
	return user
}

var withoutPassword = bson.M{"password": 0}

// MongoRepository implements Repository on a MongoDB database.
type MongoRepository struct {
	users *mongo.Collection
}

// NewMongoRepository builds a Mongo-backed identity repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{users: db.Collection(UsersCollection)}
}

// EnsureIndexes creates the unique indexes backing duplicate detection.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "nationalId", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// Create inserts a new user document.
func (r *MongoRepository) Create(ctx context.Context, user User) error {
	doc := userDocument{
		ID:         user.ID,
		Name:       user.Name,
		Age:        user.Age,
		Email:      user.Email,
		Mobile:     user.Mobile,
		NationalID: user.NationalID,
		Address:    user.Address,
		Password:   string(user.PasswordHash),
		Role:       string(user.Role),
		IsBlocked:  user.IsBlocked,
		IsVoted:    user.IsVoted,
		CreatedAt:  user.CreatedAt.UTC(),
		UpdatedAt:  user.UpdatedAt.UTC(),
	}
	_, err := r.users.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRegistration
	}
	return err
}

// FindByID fetches a user by identifier, without the password hash.
func (r *MongoRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(withoutPassword))
}

// FindByEmail fetches a user by email, without the password hash.
func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": email}, options.FindOne().SetProjection(withoutPassword))
}

// FindCredentials fetches a user by email including the password hash.
func (r *MongoRepository) FindCredentials(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// UpdateProfile applies the set fields of update and returns the stored user.
func (r *MongoRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Age != nil {
		set["age"] = *update.Age
	}
	if update.Mobile != nil {
		set["mobile"] = *update.Mobile
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(withoutPassword)
	var doc userDocument
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return User{}, ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return User{}, ErrDuplicateRegistration
	case err != nil:
		return User{}, err
	}
	return doc.toUser(), nil
}

// SetBlocked toggles the admin-controlled block flag.
func (r *MongoRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isBlocked": blocked, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountAll returns the number of registered users.
func (r *MongoRepository) CountAll(ctx context.Context) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{})
}

// List returns every user ordered by registration time.
func (r *MongoRepository) List(ctx context.Context) ([]User, error) {
	opts := options.Find().
		SetProjection(withoutPassword).
		SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []User
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.toUser())
	}
	return users, cur.Err()
}

// MarkVoted sets isVoted only when it is still false.
func (r *MongoRepository) MarkVoted(ctx context.Context, id string) error {
	return MarkVotedIn(ctx, r.users, id, time.Now().UTC())
}

// MarkVotedIn runs the conditional vote-flag update against users. ctx may
// be a session context so the write joins a transaction.
func MarkVotedIn(ctx context.Context, users *mongo.Collection, id string, at time.Time) error {
	res, err := users.UpdateOne(ctx,
		bson.M{"_id": id, "isVoted": false},
		bson.M{"$set": bson.M{"isVoted": true, "updatedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := users.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return ErrAlreadyVoted
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return doc.toUser(), nil
}
