package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pagebuilder/internal/domain"
)

// Approval statuses.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Approval is a destructive agent action waiting for a human decision.
// The agent process writes it and another process resolves it.
type Approval struct {
	ID          string    `db:"id"          bson:"_id"         json:"id"`
	Tool        string    `db:"tool"        bson:"tool"        json:"tool"`
	Description string    `db:"description" bson:"description" json:"description"`
	Status      string    `db:"status"      bson:"status"      json:"status"`
	Metadata    string    `db:"metadata"    bson:"metadata"    json:"metadata"`
	CreatedAt   time.Time `db:"created_at"  bson:"created_at"  json:"createdAt"`
}

// ApprovalStore persists pending approvals.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *Approval) error
	GetApproval(ctx context.Context, id string) (*Approval, error)
	ResolveApproval(ctx context.Context, id string, approved bool) error
	DeleteApproval(ctx context.Context, id string) error
	ListPendingApprovals(ctx context.Context) ([]Approval, error)
}

func resolvedStatus(approved bool) string {
	if approved {
		return ApprovalApproved
	}
	return ApprovalRejected
}

func prepareApproval(a *Approval) {
	if a.Status == "" {
		a.Status = ApprovalPending
	}
	if a.Metadata == "" {
		a.Metadata = "{}"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
}

// ─────────────────────────────────────────────────────────────
// SQL
// ─────────────────────────────────────────────────────────────

type SQLApprovalStore struct {
	db *DB
}

func NewSQLApprovalStore(db *DB) *SQLApprovalStore {
	return &SQLApprovalStore{db: db}
}

func (s *SQLApprovalStore) CreateApproval(ctx context.Context, a *Approval) error {
	prepareApproval(a)
	_, err := s.db.conn.NamedExecContext(ctx,
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata, created_at)
		 VALUES (:id, :tool, :description, :status, :metadata, :created_at)`, a)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *SQLApprovalStore) GetApproval(ctx context.Context, id string) (*Approval, error) {
	var a Approval
	err := s.db.conn.GetContext(ctx, &a, s.db.conn.Rebind(
		`SELECT id, tool, description, status, metadata, created_at FROM mcp_approvals WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get approval %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", id, err)
	}
	return &a, nil
}

// ResolveApproval only changes approvals still pending.
func (s *SQLApprovalStore) ResolveApproval(ctx context.Context, id string, approved bool) error {
	res, err := s.db.conn.ExecContext(ctx, s.db.conn.Rebind(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`),
		resolvedStatus(approved), id, ApprovalPending)
	if err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resolve approval %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLApprovalStore) DeleteApproval(ctx context.Context, id string) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.conn.Rebind(`DELETE FROM mcp_approvals WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete approval %s: %w", id, err)
	}
	return nil
}

func (s *SQLApprovalStore) ListPendingApprovals(ctx context.Context) ([]Approval, error) {
	var out []Approval
	err := s.db.conn.SelectContext(ctx, &out, s.db.conn.Rebind(
		`SELECT id, tool, description, status, metadata, created_at FROM mcp_approvals
		 WHERE status = ? ORDER BY created_at, id`), ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────
// Mongo
// ─────────────────────────────────────────────────────────────

func (s *MongoStore) CreateApproval(ctx context.Context, a *Approval) error {
	prepareApproval(a)
	if _, err := s.approvals.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *MongoStore) GetApproval(ctx context.Context, id string) (*Approval, error) {
	var a Approval
	err := s.approvals.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get approval %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", id, err)
	}
	return &a, nil
}

func (s *MongoStore) ResolveApproval(ctx context.Context, id string, approved bool) error {
	res, err := s.approvals.UpdateOne(ctx,
		bson.M{"_id": id, "status": ApprovalPending},
		bson.M{"$set": bson.M{"status": resolvedStatus(approved)}},
	)
	if err != nil {
		return fmt.Errorf("resolve approval %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("resolve approval %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) DeleteApproval(ctx context.Context, id string) error {
	if _, err := s.approvals.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete approval %s: %w", id, err)
	}
	return nil
}

func (s *MongoStore) ListPendingApprovals(ctx context.Context) ([]Approval, error) {
	find := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.approvals.Find(ctx, bson.M{"status": ApprovalPending}, find)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	var out []Approval
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return out, nil
}
