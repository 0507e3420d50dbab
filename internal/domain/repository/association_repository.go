package repository

import (
	"context"

	"callwatch-service/internal/domain/entity"
)

// AssociationRepository defines the interface for phone-to-client
// association storage. One association per phone number, last write wins.
type AssociationRepository interface {
	Upsert(ctx context.Context, assoc *entity.ClientAssociation) error
	FindByPhone(ctx context.Context, phone string) (*entity.ClientAssociation, error)
}

// TopicRepository stores remembered ticket subjects for autocomplete.
type TopicRepository interface {
	Touch(ctx context.Context, name string) error
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}
