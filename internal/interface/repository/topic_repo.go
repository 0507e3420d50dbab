package repository

import (
	"context"
	"time"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTopicRepository implements the TopicRepository interface
type GormTopicRepository struct {
	db *gorm.DB
}

// NewGormTopicRepository creates a new GORM topic repository
func NewGormTopicRepository(db *gorm.DB) repository.TopicRepository {
	return &GormTopicRepository{
		db: db,
	}
}

// Touch records one more use of a ticket topic
func (r *GormTopicRepository) Touch(ctx context.Context, name string) error {
	topic := entity.TicketTopic{
		Name:       name,
		UseCount:   1,
		LastUsedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"use_count":    gorm.Expr("ticket_topics.use_count + 1"),
			"last_used_at": topic.LastUsedAt,
		}),
	}).Create(&topic).Error
}

// Suggest returns the most used topics matching a prefix
func (r *GormTopicRepository) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	var topics []entity.TicketTopic
	result := r.db.WithContext(ctx).
		Where("name ILIKE ?", prefix+"%").
		Order("use_count DESC").
		Limit(limit).
		Find(&topics)
	if result.Error != nil {
		return nil, result.Error
	}

	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	return names, nil
}
