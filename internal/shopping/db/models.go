package shoppingdb

import (
	"time"
)

type ShoppingList struct {
	ID                 int64
	UserID             string
	PlanID             string
	Items              string
	TotalEstimatedCost float64
	CreatedAt          time.Time
}
