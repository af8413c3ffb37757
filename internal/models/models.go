package models

import (
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         *string   `json:"name,omitempty" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Profile хранит анкету покупателя, заполняемую при онбординге.
type Profile struct {
	UserID        uuid.UUID `json:"user_id"`
	Age           *int      `json:"age,omitempty"`
	Gender        *string   `json:"gender,omitempty"`
	ContactNumber *string   `json:"contact_number,omitempty"`
	Preferences   []string  `json:"preferences"`
	Onboarded     bool      `json:"onboarded"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Product: позиция каталога. После загрузки не изменяется.
type Product struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Price    float64  `json:"price" yaml:"price"`
	Category string   `json:"category" yaml:"category"`
	Tags     []string `json:"tags" yaml:"tags"`
	Rating   *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
	ImageURL string   `json:"image,omitempty" yaml:"image,omitempty"`
}

type CartItem struct {
	UserID    uuid.UUID `json:"-"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine: позиция корзины вместе с данными товара.
type CartLine struct {
	Item    CartItem
	Product Product
}

// Subtotal возвращает стоимость позиции с учетом количества.
func (l CartLine) Subtotal() float64 {
	return l.Product.Price * float64(l.Item.Quantity)
}

type BudgetState struct {
	UserID    uuid.UUID `json:"-"`
	Total     float64   `json:"total"`
	Remaining float64   `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	ReplacedBy *uuid.UUID `json:"replaced_by,omitempty" db:"replaced_by"`
}
