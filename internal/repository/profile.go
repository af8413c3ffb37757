package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-shopmate/backend/internal/models"
)

type ProfileRepository struct {
	db *pgxpool.Pool
}

// ProfileUpdate описывает частичное обновление анкеты. nil-поля не меняются.
type ProfileUpdate struct {
	Age           *int
	Gender        *string
	ContactNumber *string
	Preferences   []string
	Onboarded     *bool
}

// NewProfileRepository создает репозиторий профилей.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get возвращает профиль пользователя, создавая пустой при первом обращении.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return models.Profile{}, err
	}

	row := r.db.QueryRow(ctx,
		`SELECT user_id, age, gender, contact_number, preferences, onboarded, updated_at
		 FROM profiles
		 WHERE user_id = $1`,
		userID,
	)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile, ErrNotFound
		}
		return profile, err
	}

	return profile, nil
}

// Upsert сливает обновление с существующим профилем.
func (r *ProfileRepository) Upsert(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (models.Profile, error) {
	return upsertProfile(ctx, r.db, userID, update)
}

// Onboard в одной транзакции задает стартовый бюджет и сохраняет анкету
// с отметкой о завершенном онбординге.
func (r *ProfileRepository) Onboard(ctx context.Context, userID uuid.UUID, update ProfileUpdate, amount float64) (models.Profile, models.BudgetState, error) {
	var profile models.Profile
	var state models.BudgetState

	onboarded := true
	update.Onboarded = &onboarded

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ledger, err := lockLedger(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := ledger.SetBudget(amount); err != nil {
			return err
		}

		state, err = saveLedger(ctx, tx, userID, ledger)
		if err != nil {
			return err
		}

		profile, err = upsertProfile(ctx, tx, userID, update)
		return err
	})
	if err != nil {
		return models.Profile{}, models.BudgetState{}, err
	}

	return profile, state, nil
}

func upsertProfile(ctx context.Context, q querier, userID uuid.UUID, update ProfileUpdate) (models.Profile, error) {
	row := q.QueryRow(ctx,
		`INSERT INTO profiles (user_id, age, gender, contact_number, preferences, onboarded)
		 VALUES ($1, $2, $3, $4, COALESCE($5::text[], '{}'), COALESCE($6, FALSE))
		 ON CONFLICT (user_id) DO UPDATE
		 SET age = COALESCE($2, profiles.age),
		     gender = COALESCE($3, profiles.gender),
		     contact_number = COALESCE($4, profiles.contact_number),
		     preferences = COALESCE($5::text[], profiles.preferences),
		     onboarded = COALESCE($6, profiles.onboarded),
		     updated_at = NOW()
		 RETURNING user_id, age, gender, contact_number, preferences, onboarded, updated_at`,
		userID, update.Age, update.Gender, update.ContactNumber, update.Preferences, update.Onboarded,
	)

	return scanProfile(row)
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var profile models.Profile
	var age *int
	var gender *string
	var contact *string
	err := row.Scan(
		&profile.UserID,
		&age,
		&gender,
		&contact,
		&profile.Preferences,
		&profile.Onboarded,
		&profile.UpdatedAt,
	)
	profile.Age = age
	profile.Gender = gender
	profile.ContactNumber = contact
	if profile.Preferences == nil {
		profile.Preferences = []string{}
	}
	return profile, err
}
