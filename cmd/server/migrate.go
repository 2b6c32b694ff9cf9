package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

// legacyState is what the browser-only display kept in local storage, exported
// to a file by the operator when the kiosk moved to this server.
type legacyState struct {
	LastSubmittedAnswerID json.RawMessage `json:"lastSubmittedAnswerId"`
}

// LastSeenStore is the part of the sqlite store the import writes to.
type LastSeenStore interface {
	LastSeenAnswer(ctx context.Context) (string, error)
	SetLastSeenAnswer(ctx context.Context, id string) error
}

// MigrateLegacyState imports the last submitted answer id from the legacy
// state file, once. A store that already tracks an id is left alone and a
// missing file is not an error.
func MigrateLegacyState(ctx context.Context, path string, store LastSeenStore, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy state: %w", err)
	}
	current, err := store.LastSeenAnswer(ctx)
	if err != nil {
		return err
	}
	if current != "" {
		return nil
	}
	var st legacyState
	if err := json.Unmarshal(b, &st); err != nil {
		return fmt.Errorf("parse legacy state %s: %w", path, err)
	}
	id := models.FlexString(st.LastSubmittedAnswerID)
	if id == "" {
		return nil
	}
	if err := store.SetLastSeenAnswer(ctx, id); err != nil {
		return fmt.Errorf("store last seen answer: %w", err)
	}
	logger.Info("imported legacy kiosk state", zap.String("path", path), zap.String("answer_id", id))
	return nil
}
