package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Identifier interface {
	GetId() int
}

// interface for dataloader result
type Data interface {
	Identifier
	GetDefault(int) Data
}

func (p Product) GetId() int {
	return p.ID
}

func (p Product) GetDefault(id int) Data {
	return Product{
		ID:        id,
		Name:      fallbackProductName,
		Discount:  decimal.Zero,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (u User) GetId() int {
	return u.ID
}

func (u User) GetDefault(id int) Data {
	return User{
		ID:        id,
		Role:      UserRoleUser,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (c Category) GetId() int {
	return c.ID
}

func (c Category) GetDefault(id int) Data {
	return Category{
		ID:        id,
		CreatedAt: time.Now(),
	}
}

// loader loading more than one model by one id
type RelatedData interface {
	GetReferenceId() int
}

func (v ProductVariant) GetReferenceId() int {
	return v.ProductId
}
