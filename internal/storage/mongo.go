package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pagebuilder/internal/domain"
)

const (
	pagesCollection     = "pages"
	versionsCollection  = "page_versions"
	approvalsCollection = "mcp_approvals"
)

// MongoStore keeps pages and their published versions in MongoDB. It
// implements domain.PageStore, domain.VersionStore and ApprovalStore.
type MongoStore struct {
	client     *mongo.Client
	pages      *mongo.Collection
	versions   *mongo.Collection
	approvals  *mongo.Collection
	maxPerPage int
}

// OpenMongo connects to uri and prepares the collections of database.
func OpenMongo(ctx context.Context, uri, database string, maxVersions int) (*MongoStore, error) {
	if database == "" {
		database = databaseFromURI(uri)
	}
	log.Printf("[STORAGE] connecting to mongo database %s", database)

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		pages:      db.Collection(pagesCollection),
		versions:   db.Collection(versionsCollection),
		approvals:  db.Collection(approvalsCollection),
		maxPerPage: maxVersions,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.pages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create page index: %w", err)
	}
	_, err = s.versions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "page_id", Value: 1}, {Key: "version", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create version index: %w", err)
	}
	return nil
}

// databaseFromURI extracts the path of user:pass@host/DB?params, or "pagebuilder".
func databaseFromURI(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if at := strings.Index(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash != -1 {
		path := rest[slash+1:]
		if q := strings.Index(path, "?"); q != -1 {
			path = path[:q]
		}
		if path != "" {
			return path
		}
	}
	return "pagebuilder"
}

// ─────────────────────────────────────────────────────────────
// Pages
// ─────────────────────────────────────────────────────────────

func (s *MongoStore) CreatePage(ctx context.Context, p *domain.Page) error {
	preparePage(p, uuid.NewString, time.Now().UTC())
	rec, err := newPageRecord(p)
	if err != nil {
		return err
	}
	if _, err := s.pages.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert page %s: %w", p.ID, domain.ErrDuplicateID)
		}
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (s *MongoStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	var rec pageRecord
	err := s.pages.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", id, err)
	}
	p, err := rec.page()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) UpdatePage(ctx context.Context, p *domain.Page) error {
	now := time.Now().UTC()
	sections, err := encodeSections(p.Sections)
	if err != nil {
		return err
	}
	res, err := s.pages.UpdateOne(ctx,
		bson.M{"_id": p.ID, "version": p.Version},
		bson.M{"$set": bson.M{
			"title":         p.Title,
			"slug":          p.Slug,
			"description":   p.Description,
			"status":        string(p.Status),
			"template_id":   p.TemplateID,
			"sections_json": sections,
			"version":       p.Version + 1,
			"updated_at":    now,
			"published_at":  p.PublishedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update page %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := s.pages.CountDocuments(ctx, bson.M{"_id": p.ID})
		if err != nil {
			return fmt.Errorf("check page %s: %w", p.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("update page %s: %w", p.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update page %s: %w", p.ID, domain.ErrVersionConflict)
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *MongoStore) DeletePage(ctx context.Context, id string) error {
	res, err := s.pages.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete page %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *MongoStore) ListPagesByUser(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Page, error) {
	find := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	if opts.Offset > 0 {
		find.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	cursor, err := s.pages.Find(ctx, bson.M{"user_id": userID}, find)
	if err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", userID, err)
	}
	var recs []pageRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("list pages of %s: %w", userID, err)
	}
	pages := make([]domain.Page, 0, len(recs))
	for _, r := range recs {
		p, err := r.page()
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// ─────────────────────────────────────────────────────────────
// Versions
// ─────────────────────────────────────────────────────────────

func (s *MongoStore) CreateVersion(ctx context.Context, v *domain.PageVersion) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	rec, err := newVersionRecord(v)
	if err != nil {
		return err
	}
	if _, err := s.versions.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	if err := s.pruneVersions(ctx, v.PageID); err != nil {
		log.Printf("[STORAGE] prune versions of %s: %v", v.PageID, err)
	}
	return nil
}

func (s *MongoStore) GetVersion(ctx context.Context, id string) (*domain.PageVersion, error) {
	var rec versionRecord
	err := s.versions.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get version %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get version %s: %w", id, err)
	}
	v, err := rec.version()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *MongoStore) ListVersions(ctx context.Context, pageID string) ([]domain.PageVersion, error) {
	recs, err := s.findVersions(ctx, pageID, 0)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", pageID, err)
	}
	versions := make([]domain.PageVersion, 0, len(recs))
	for _, r := range recs {
		v, err := r.version()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (s *MongoStore) DeleteVersionsByPage(ctx context.Context, pageID string) error {
	if _, err := s.versions.DeleteMany(ctx, bson.M{"page_id": pageID}); err != nil {
		return fmt.Errorf("delete versions of %s: %w", pageID, err)
	}
	return nil
}

// findVersions returns the page's versions newest first, skipping skip.
func (s *MongoStore) findVersions(ctx context.Context, pageID string, skip int) ([]versionRecord, error) {
	find := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})
	if skip > 0 {
		find.SetSkip(int64(skip))
	}
	cursor, err := s.versions.Find(ctx, bson.M{"page_id": pageID}, find)
	if err != nil {
		return nil, err
	}
	var recs []versionRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *MongoStore) pruneVersions(ctx context.Context, pageID string) error {
	stale, err := s.findVersions(ctx, pageID, s.maxPerPage)
	if err != nil || len(stale) == 0 {
		return err
	}
	ids := lo.Map(stale, func(r versionRecord, _ int) string { return r.ID })
	_, err = s.versions.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
