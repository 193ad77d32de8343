package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a gateway account. Identities come from the upstream OIDC provider;
// ProviderID holds the provider's `sub` claim.
type User struct {
	bun.BaseModel `bun:"table:auth.users,alias:u"`

	ID         uuid.UUID `bun:"type:uuid,default:gen_random_uuid(),pk"`
	Email      string    `bun:",nullzero"`
	Login      string    `bun:",notnull"`
	Name       string    `bun:",nullzero"`
	Provider   string    `bun:",notnull"`
	ProviderID string    `bun:",notnull"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// Note: refresh tokens are stored in Valkey (pkg/kv), not in the database.
