package client

import (
	"github.com/ledgerline/ledgerline/internal/types"
)

// Client is a billing recipient. The billing engine reads this directory to
// denormalize names and emails onto invoices at generation time; it never
// writes to it.
type Client struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	types.BaseModel
}
