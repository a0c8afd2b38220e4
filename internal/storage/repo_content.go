package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/roadmap-ai/orchestrator/internal/errkind"
	"github.com/roadmap-ai/orchestrator/internal/roadmap"
)

// SaveContentArtifacts writes a new version of a concept's tutorial,
// resources, and quiz in one pass. Content versions are append-only: a
// retry writes version+1 rather than overwriting the prior attempt.
func (r *Repo) SaveContentArtifacts(ctx context.Context, a *roadmap.ContentArtifacts) error {
	resources, _ := json.Marshal(a.Resources)
	quiz, _ := json.Marshal(a.Quiz)

	if _, err := r.tx.ExecContext(ctx, `
		INSERT INTO tutorials (concept_id, version, content) VALUES (?, ?, ?)
		ON CONFLICT(concept_id, version) DO UPDATE SET content = excluded.content`,
		a.ConceptID, a.Version, a.Tutorial); err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save tutorial")
	}
	if _, err := r.tx.ExecContext(ctx, `
		INSERT INTO resources (concept_id, version, items) VALUES (?, ?, ?)
		ON CONFLICT(concept_id, version) DO UPDATE SET items = excluded.items`,
		a.ConceptID, a.Version, string(resources)); err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save resources")
	}
	if _, err := r.tx.ExecContext(ctx, `
		INSERT INTO quizzes (concept_id, version, items) VALUES (?, ?, ?)
		ON CONFLICT(concept_id, version) DO UPDATE SET items = excluded.items`,
		a.ConceptID, a.Version, string(quiz)); err != nil {
		return errkind.Wrap(err, errkind.Recoverable, "save quiz")
	}
	return nil
}

// ErrContentNotFound is returned by LatestContentArtifacts when a concept
// has no saved artifacts yet.
var ErrContentNotFound = errors.New("content artifacts not found")

// NextContentVersion returns the version number the next save for a concept
// should use (1 if none exist yet).
func (r *Repo) NextContentVersion(ctx context.Context, conceptID string) (int, error) {
	var maxVersion sql.NullInt64
	err := r.tx.QueryRowxContext(ctx, `SELECT MAX(version) FROM tutorials WHERE concept_id = ?`, conceptID).Scan(&maxVersion)
	if err != nil {
		return 0, errkind.Wrap(err, errkind.Recoverable, "get next content version")
	}
	if !maxVersion.Valid {
		return 1, nil
	}
	return int(maxVersion.Int64) + 1, nil
}

// LatestContentArtifacts loads the highest-version tutorial/resources/quiz
// triple for a concept.
func (r *Repo) LatestContentArtifacts(ctx context.Context, conceptID string) (*roadmap.ContentArtifacts, error) {
	var a roadmap.ContentArtifacts
	a.ConceptID = conceptID

	err := r.tx.QueryRowxContext(ctx, `
		SELECT version, content FROM tutorials WHERE concept_id = ? ORDER BY version DESC LIMIT 1`, conceptID).
		Scan(&a.Version, &a.Tutorial)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContentNotFound
	}
	if err != nil {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get latest tutorial")
	}

	var resourcesJSON string
	if err := r.tx.QueryRowxContext(ctx, `
		SELECT items FROM resources WHERE concept_id = ? AND version = ?`, conceptID, a.Version).
		Scan(&resourcesJSON); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get latest resources")
	}
	_ = json.Unmarshal([]byte(resourcesJSON), &a.Resources)

	var quizJSON string
	if err := r.tx.QueryRowxContext(ctx, `
		SELECT items FROM quizzes WHERE concept_id = ? AND version = ?`, conceptID, a.Version).
		Scan(&quizJSON); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errkind.Wrap(err, errkind.Recoverable, "get latest quiz")
	}
	_ = json.Unmarshal([]byte(quizJSON), &a.Quiz)

	return &a, nil
}
