package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrContactNotFound     = apperr.New(apperr.KindNotFound, "emergency contact not found")
	ErrContactNameRequired = apperr.New(apperr.KindInvalidInput, "contact name is required")
	ErrInvalidPhone        = apperr.New(apperr.KindInvalidInput, "phone number must contain 7 to 15 digits")
	ErrTooManyContacts     = apperr.New(apperr.KindInvalidState, "emergency contact limit reached")
)

const maxEmergencyContacts = 10

var phoneDigits = regexp.MustCompile(`\d`)
var phoneAllowed = regexp.MustCompile(`^\+?[\d\s().-]+$`)

type ContactService struct {
	db DB
}

func NewContactService(db DB) *ContactService {
	return &ContactService{db: db}
}

const contactColumns = "id, user_id, name, phone, relationship, is_primary, created_at"

func scanContact(row Row) (*models.EmergencyContact, error) {
	c := &models.EmergencyContact{}
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Relationship, &c.IsPrimary, &c.CreatedAt)
	return c, err
}

func normalizeContact(params models.ContactParams) (models.ContactParams, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Phone = strings.TrimSpace(params.Phone)
	params.Relationship = strings.TrimSpace(params.Relationship)
	if params.Name == "" {
		return params, ErrContactNameRequired
	}
	digits := len(phoneDigits.FindAllString(params.Phone, -1))
	if !phoneAllowed.MatchString(params.Phone) || digits < 7 || digits > 15 {
		return params, ErrInvalidPhone
	}
	return params, nil
}

// List returns the user's contacts with the primary contact first.
func (s *ContactService) List(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+contactColumns+" FROM emergency_contacts WHERE user_id = $1 ORDER BY is_primary DESC, created_at",
		userID,
	)
	if err != nil {
		return nil, apperr.Transient("listing contacts", err)
	}
	defer rows.Close()

	contacts := []models.EmergencyContact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing contacts", err)
	}
	return contacts, nil
}

// Create adds a contact. The first contact a user adds becomes primary.
func (s *ContactService) Create(ctx context.Context, userID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error) {
	params, err := normalizeContact(params)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM emergency_contacts WHERE user_id = $1", userID).Scan(&count); err != nil {
		return nil, apperr.Transient("counting contacts", err)
	}
	if count >= maxEmergencyContacts {
		return nil, ErrTooManyContacts
	}

	contact, err := scanContact(s.db.QueryRow(ctx,
		`INSERT INTO emergency_contacts (user_id, name, phone, relationship, is_primary)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+contactColumns,
		userID, params.Name, params.Phone, params.Relationship, count == 0,
	))
	if err != nil {
		return nil, apperr.Transient("creating contact", err)
	}
	return contact, nil
}

func (s *ContactService) Update(ctx context.Context, userID, contactID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error) {
	params, err := normalizeContact(params)
	if err != nil {
		return nil, err
	}

	contact, err := scanContact(s.db.QueryRow(ctx,
		`UPDATE emergency_contacts SET name = $3, phone = $4, relationship = $5
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+contactColumns,
		contactID, userID, params.Name, params.Phone, params.Relationship,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, apperr.Transient("updating contact", err)
	}
	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, userID, contactID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM emergency_contacts WHERE id = $1 AND user_id = $2",
		contactID, userID,
	)
	if err != nil {
		return apperr.Transient("deleting contact", err)
	}
	if result.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// SetPrimary makes contactID the user's only primary contact.
func (s *ContactService) SetPrimary(ctx context.Context, userID, contactID uuid.UUID) (*models.EmergencyContact, error) {
	var contact *models.EmergencyContact
	err := withTx(ctx, s.db, func(tx Tx) error {
		if _, err := tx.Exec(ctx,
			"UPDATE emergency_contacts SET is_primary = false WHERE user_id = $1 AND is_primary = true AND id <> $2",
			userID, contactID,
		); err != nil {
			return apperr.Transient("clearing primary contact", err)
		}

		c, err := scanContact(tx.QueryRow(ctx,
			`UPDATE emergency_contacts SET is_primary = true
			 WHERE id = $1 AND user_id = $2
			 RETURNING `+contactColumns,
			contactID, userID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrContactNotFound
		}
		if err != nil {
			return apperr.Transient("setting primary contact", err)
		}
		contact = c
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return nil, err
		}
		return nil, apperr.Transient("set primary contact", err)
	}
	return contact, nil
}
