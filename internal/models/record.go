package models

import (
	"time"
)

// Table names, one per entity type.
const (
	UsersTable            = "users"
	CustomersTable        = "customers"
	UserCustomerRelsTable = "user_customer_rels"
	TicketsTable          = "tickets"
	CommentsTable         = "comments"
	AttachmentsTable      = "attachments"
)

// Tables lists every entity table in migration order.
var Tables = []string{
	UsersTable,
	CustomersTable,
	UserCustomerRelsTable,
	TicketsTable,
	CommentsTable,
	AttachmentsTable,
}

// Record is a schema-less document row keyed by an auto-assigned integer ID.
// The same shape backs every entity table.
type Record struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	Body      JSON  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
