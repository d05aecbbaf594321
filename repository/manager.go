// Package repository implements the MongoDB-backed store behind the auth
// service: user records, role records, and the integer-sequence counters the
// create-user command allocates ids from.
package repository

import (
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	rolesCollection    = "roles"
	countersCollection = "counters"
)

// Manager exposes all repositories
type Manager interface {
	Users() *Users
	Roles() *Roles
	Counters() *Counters
	Ping(ctx context.Context) error
	Validate() error
	MustValidate()
}

type mngr struct {
	client   *mongo.Client
	db       *mongo.Database
	users    *Users
	roles    *Roles
	counters *Counters
}

// NewManager builds a Manager over a connected client and database name.
func NewManager(client *mongo.Client, dbName string) Manager {
	db := client.Database(dbName)
	return &mngr{
		client:   client,
		db:       db,
		users:    NewUsersRepository(db.Collection(usersCollection)),
		roles:    NewRolesRepository(db.Collection(rolesCollection)),
		counters: NewCountersRepository(db.Collection(countersCollection)),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.counters == nil {
		return errors.New("repository counters should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m mngr) Users() *Users {
	return m.users
}

func (m mngr) Roles() *Roles {
	return m.roles
}

func (m mngr) Counters() *Counters {
	return m.counters
}
