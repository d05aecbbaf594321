package repository

import (
	"context"
	"strconv"

	"github.com/goliatone/go-errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/goliatone/go-auth-service"
)

// Users is the MongoDB repository for user documents.
type Users struct {
	coll *mongo.Collection
}

// NewUsersRepository wraps the users collection.
func NewUsersRepository(coll *mongo.Collection) *Users {
	return &Users{coll: coll}
}

var (
	_ auth.UserStore  = (*Users)(nil)
	_ auth.UserWriter = (*Users)(nil)
)

// FindByUsername looks a user up by exact, case-sensitive username.
func (r *Users) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByEmail looks a user up by the email field.
func (r *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByIdentifier tries username first, then email, with the same input.
// It mirrors the verifier's lookup order for callers that want one call.
func (r *Users) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	user, err := r.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}
	return r.FindByEmail(ctx, identifier)
}

// FindByID resolves a canonical identifier: an all-digit string matches the
// integer id field, a 24-char hex string matches the ObjectID.
func (r *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return r.findOne(ctx, bson.M{"id": n})
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid user identifier", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"id": id})
	}

	return r.findOne(ctx, bson.M{"_id": oid})
}

// CountByUsername reports how many documents carry the username. Used as a
// duplicate check before insertion.
func (r *Users) CountByUsername(ctx context.Context, username string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count users").
			WithMetadata(map[string]any{"username": username})
	}
	return count, nil
}

// Insert stores a new user document.
func (r *Users) Insert(ctx context.Context, user *auth.User) error {
	result, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert user").
			WithMetadata(map[string]any{"username": user.Username})
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.OID = oid
	}

	return nil
}

func (r *Users) findOne(ctx context.Context, filter bson.M) (*auth.User, error) {
	user := &auth.User{}
	if err := r.coll.FindOne(ctx, filter).Decode(user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("user not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "user lookup failed")
	}
	return user, nil
}
