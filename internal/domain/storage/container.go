package storage

import (
	"dreka/internal/docstore"
	"dreka/internal/domain/ratings"
	"dreka/internal/domain/suggestions"
	"dreka/internal/domain/users"
	"dreka/internal/domain/venues"
)

type Container struct {
	Docs        docstore.Store
	Users       users.Store
	Venues      venues.Store
	Ratings     ratings.Store
	Suggestions suggestions.Store
}

func NewContainer(docs docstore.Store) *Container {
	return &Container{
		Docs:        docs,
		Users:       users.NewRepository(docs),
		Venues:      venues.NewRepository(docs),
		Ratings:     ratings.NewRepository(docs),
		Suggestions: suggestions.NewRepository(docs),
	}
}
