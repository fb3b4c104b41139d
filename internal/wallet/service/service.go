// Package service is the encrypted persistence boundary for identity
// records: content is encrypted before every write and decrypted after
// every read. Plaintext never reaches a store.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"idwallet/internal/audit"
	authstore "idwallet/internal/auth/store"
	"idwallet/internal/wallet/crypto"
	"idwallet/internal/wallet/store"
	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/sentinel"
)

// Service resolves caller-asserted owner identifiers, enforces the
// encryption boundary, and keeps the error taxonomy distinct: unknown owner,
// no record yet, decryption failure, and persistence failure never collapse
// into one another.
type Service struct {
	users   authstore.UserStore
	records store.RecordStore
	sealer  *crypto.Sealer
	auditor *audit.Publisher
	logger  *slog.Logger
}

func New(
	users authstore.UserStore,
	records store.RecordStore,
	sealer *crypto.Sealer,
	auditor *audit.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:   users,
		records: records,
		sealer:  sealer,
		auditor: auditor,
		logger:  logger,
	}
}

// resolveOwner maps a username/email/phone to the stable account id. An
// unresolvable identifier fails cleanly instead of flowing into queries.
func (s *Service) resolveOwner(ctx context.Context, ownerLogin string) (uuid.UUID, error) {
	user, err := s.users.FindByLogin(ctx, ownerLogin)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return uuid.Nil, dErrors.New(dErrors.CodeUnknownOwner, "unknown owner")
		}
		return uuid.Nil, dErrors.Wrap(dErrors.CodePersistence, "resolve owner", err)
	}
	return user.ID, nil
}

// Upsert encrypts content and persists it for the owner: insert if absent,
// replace if present.
func (s *Service) Upsert(ctx context.Context, ownerLogin string, content json.RawMessage) error {
	if len(content) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "content must be a json document")
	}
	plaintext, err := canonicalize(content)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeBadRequest, "content must be a json document", err)
	}

	ownerID, err := s.resolveOwner(ctx, ownerLogin)
	if err != nil {
		return err
	}

	ciphertext, err := s.sealer.Seal(plaintext)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "encrypt record", err)
	}

	if err := s.records.Upsert(ctx, ownerID, ciphertext); err != nil {
		return dErrors.Wrap(dErrors.CodePersistence, "persist record", err)
	}

	s.auditor.Emit(audit.Event{
		UserID: ownerID.String(),
		Action: audit.ActionRecordUpserted,
	})
	s.logger.InfoContext(ctx, "identity record upserted", "owner", ownerLogin)
	return nil
}

// Get fetches, decrypts, and returns the owner's record content.
func (s *Service) Get(ctx context.Context, ownerLogin string) (json.RawMessage, error) {
	ownerID, err := s.resolveOwner(ctx, ownerLogin)
	if err != nil {
		return nil, err
	}

	ciphertext, err := s.records.Find(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no identity record yet")
		}
		return nil, dErrors.Wrap(dErrors.CodePersistence, "fetch record", err)
	}

	plaintext, err := s.sealer.Open(ciphertext)
	if err != nil {
		// Corruption, not absence. Surfaced distinctly and never as
		// partial content.
		s.logger.ErrorContext(ctx, "identity record failed decryption", "owner", ownerLogin)
		return nil, dErrors.Wrap(dErrors.CodeDecryptFailure, "record integrity check failed", err)
	}

	s.auditor.Emit(audit.Event{
		UserID: ownerID.String(),
		Action: audit.ActionRecordRead,
	})
	return plaintext, nil
}

// Has reports whether the owner already stored a record, without touching
// the ciphertext.
func (s *Service) Has(ctx context.Context, ownerLogin string) (bool, error) {
	ownerID, err := s.resolveOwner(ctx, ownerLogin)
	if err != nil {
		return false, err
	}
	exists, err := s.records.Exists(ctx, ownerID)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodePersistence, "check record", err)
	}
	return exists, nil
}

// canonicalize compacts the JSON content so the encrypted byte form is
// stable regardless of how the caller formatted it.
func canonicalize(content json.RawMessage) ([]byte, error) {
	if !json.Valid(content) {
		return nil, errors.New("invalid json")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, content); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
