package db

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrMissingFilter = errors.New("delete requires at least one filter")

// TableQuery is an equality-filtered listing. Column names must already be validated by the caller.
type TableQuery struct {
	Filter map[string]any
	Order  string
	Desc   bool
	Limit  int
}

type TableRepository[T any] struct {
	database *gorm.DB
}

func NewTableRepository[T any](database *gorm.DB) *TableRepository[T] {
	return &TableRepository[T]{database: database}
}

func (repo *TableRepository[T]) Find(query TableQuery) ([]T, error) {
	statement := repo.database.Model(new(T))
	if len(query.Filter) > 0 {
		statement = statement.Where(query.Filter)
	}
	if query.Order != "" {
		statement = statement.Order(clause.OrderByColumn{
			Column: clause.Column{Name: query.Order},
			Desc:   query.Desc,
		})
	}
	if query.Limit > 0 {
		statement = statement.Limit(query.Limit)
	}

	rows := make([]T, 0)
	if err := statement.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (repo *TableRepository[T]) Count(filter map[string]any) (int64, error) {
	var count int64
	statement := repo.database.Model(new(T))
	if len(filter) > 0 {
		statement = statement.Where(filter)
	}
	if err := statement.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (repo *TableRepository[T]) Create(row *T) error {
	return repo.database.Create(row).Error
}

func (repo *TableRepository[T]) Delete(filter map[string]any) (int64, error) {
	if len(filter) == 0 {
		return 0, ErrMissingFilter
	}
	result := repo.database.Where(filter).Delete(new(T))
	return result.RowsAffected, result.Error
}

// CreateAll inserts rows in one statement, so either every row lands or none does.
func (repo *TableRepository[T]) CreateAll(rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return repo.database.Create(&rows).Error
}
