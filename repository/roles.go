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

// Roles is the MongoDB repository for role documents.
type Roles struct {
	coll *mongo.Collection
}

// NewRolesRepository wraps the roles collection.
func NewRolesRepository(coll *mongo.Collection) *Roles {
	return &Roles{coll: coll}
}

var _ auth.RoleStore = (*Roles)(nil)

// FindByRef resolves a role reference as stored on a user document. Numeric
// refs match the integer id field, ObjectIDs (and their hex string form)
// match _id, and all-digit strings are coerced to integers first.
func (r *Roles) FindByRef(ctx context.Context, ref any) (*auth.Role, error) {
	filter, err := roleRefFilter(ref)
	if err != nil {
		return nil, err
	}

	role := &auth.Role{}
	if err := r.coll.FindOne(ctx, filter).Decode(role); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("role not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "role lookup failed")
	}

	return role, nil
}

func roleRefFilter(ref any) (bson.M, error) {
	switch v := ref.(type) {
	case int:
		return bson.M{"id": int64(v)}, nil
	case int32:
		return bson.M{"id": int64(v)}, nil
	case int64:
		return bson.M{"id": v}, nil
	case float64:
		// bson decodes untagged numbers as float64
		return bson.M{"id": int64(v)}, nil
	case primitive.ObjectID:
		return bson.M{"_id": v}, nil
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return bson.M{"id": n}, nil
		}
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return bson.M{"_id": oid}, nil
		}
		return nil, invalidRoleRef(v)
	default:
		return nil, invalidRoleRef(v)
	}
}

func invalidRoleRef(ref any) error {
	return errors.New("unsupported role reference", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{"ref": ref})
}
