// Package mongo provides a MongoDB-backed workforce.Store. Each aggregate
// lives in its own collection; certificates and restrictions are embedded
// in the operative document.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colOperatives  = "operatives"
	colSites       = "sites"
	colClients     = "clients"
	colAssignments = "assignments"
)

type Store struct {
	operatives  *mongo.Collection
	sites       *mongo.Collection
	clients     *mongo.Collection
	assignments *mongo.Collection
}

var _ workforce.Store = (*Store)(nil)

func New(db *mongo.Database) *Store {
	return &Store{
		operatives:  db.Collection(colOperatives),
		sites:       db.Collection(colSites),
		clients:     db.Collection(colClients),
		assignments: db.Collection(colAssignments),
	}
}

// Ping checks the server behind the store. Served by /healthz.
func (s *Store) Ping(ctx context.Context) error {
	return s.operatives.Database().Client().Ping(ctx, nil)
}

// Connect dials uri, pings it, and returns the client (for Disconnect) and
// a Store over database.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *Store, error) {
	if uri == "" {
		return nil, nil, fmt.Errorf("mongo connection uri is empty")
	}

	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := New(client.Database(database))
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, store, nil
}

// EnsureIndexes creates the indexes the engine's scans rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.assignments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "operative_id", Value: 1}, {Key: "start_date", Value: 1}}},
		{Keys: bson.D{{Key: "site_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create assignment indexes: %w", err)
	}
	for _, c := range []*mongo.Collection{s.operatives, s.sites, s.clients, s.assignments} {
		if _, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "seq", Value: 1}}}); err != nil {
			return fmt.Errorf("create %s seq index: %w", c.Name(), err)
		}
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type certificateDoc struct {
	ID          string `bson:"id"`
	Name        string `bson:"name"`
	Provider    string `bson:"provider,omitempty"`
	IssueDate   string `bson:"issue_date,omitempty"`
	ExpiryDate  string `bson:"expiry_date,omitempty"`
	Status      string `bson:"status,omitempty"`
	DocumentURL string `bson:"document_url,omitempty"`
	Type        string `bson:"type,omitempty"`
}

type restrictionDoc struct {
	ID         string `bson:"id"`
	TargetType string `bson:"target_type"`
	TargetID   string `bson:"target_id"`
	Note       string `bson:"note,omitempty"`
}

type operativeDoc struct {
	ID             string           `bson:"_id"`
	FirstName      string           `bson:"first_name"`
	LastName       string           `bson:"last_name"`
	Email          string           `bson:"email,omitempty"`
	Phone          string           `bson:"phone,omitempty"`
	EmploymentType string           `bson:"employment_type,omitempty"`
	Trade          string           `bson:"trade,omitempty"`
	Certificates   []certificateDoc `bson:"certificates"`
	Restrictions   []restrictionDoc `bson:"restrictions"`
}

type siteDoc struct {
	ID                  string   `bson:"_id"`
	ClientID            string   `bson:"client_id,omitempty"`
	Name                string   `bson:"name"`
	Address             string   `bson:"address,omitempty"`
	StartDate           string   `bson:"start_date,omitempty"`
	EndDate             string   `bson:"end_date,omitempty"`
	RequiredTrades      []string `bson:"required_trades"`
	MaxOperatives       int      `bson:"max_operatives"`
	FulfillmentRequired bool     `bson:"fulfillment_required"`
	ProjectType         string   `bson:"project_type,omitempty"`
}

// Money is stored as decimal strings so values survive exactly.
type jobTypeDoc struct {
	Name       string `bson:"name"`
	PayRate    string `bson:"pay_rate"`
	ClientCost string `bson:"client_cost"`
}

type clientDoc struct {
	ID       string       `bson:"_id"`
	Name     string       `bson:"name"`
	JobTypes []jobTypeDoc `bson:"job_types"`
}

type assignmentDoc struct {
	ID          string `bson:"_id"`
	OperativeID string `bson:"operative_id"`
	SiteID      string `bson:"site_id"`
	StartDate   string `bson:"start_date,omitempty"`
	EndDate     string `bson:"end_date,omitempty"`
	Status      string `bson:"status"`
	CreatedAt   string `bson:"created_at,omitempty"`
	Seq         int64  `bson:"seq"`
}

func toCertificateDocs(certs []workforce.Certificate) []certificateDoc {
	out := make([]certificateDoc, 0, len(certs))
	for _, c := range certs {
		out = append(out, certificateDoc{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			IssueDate:   c.IssueDate.String(),
			ExpiryDate:  c.ExpiryDate.String(),
			Status:      string(c.Status),
			DocumentURL: c.DocumentURL,
			Type:        string(c.Type),
		})
	}
	return out
}

func toRestrictionDocs(rs []workforce.Restriction) []restrictionDoc {
	out := make([]restrictionDoc, 0, len(rs))
	for _, r := range rs {
		out = append(out, restrictionDoc{ID: r.ID, TargetType: string(r.TargetType), TargetID: r.TargetID, Note: r.Note})
	}
	return out
}

func fromRestrictionDocs(docs []restrictionDoc) []workforce.Restriction {
	out := make([]workforce.Restriction, 0, len(docs))
	for _, r := range docs {
		out = append(out, workforce.Restriction{ID: r.ID, TargetType: workforce.TargetType(r.TargetType), TargetID: r.TargetID, Note: r.Note})
	}
	return out
}

func (d operativeDoc) toDomain() workforce.Operative {
	op := workforce.Operative{
		ID:             workforce.OperativeID(d.ID),
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		Email:          d.Email,
		Phone:          d.Phone,
		EmploymentType: d.EmploymentType,
		Trade:          d.Trade,
		Certificates:   make([]workforce.Certificate, 0, len(d.Certificates)),
		Restrictions:   fromRestrictionDocs(d.Restrictions),
	}
	for _, c := range d.Certificates {
		issue, _ := generic.ParseDate(c.IssueDate)
		expiry, _ := generic.ParseDate(c.ExpiryDate)
		op.Certificates = append(op.Certificates, workforce.Certificate{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			IssueDate:   issue,
			ExpiryDate:  expiry,
			Status:      workforce.CertStatus(c.Status),
			DocumentURL: c.DocumentURL,
			Type:        workforce.CertType(c.Type),
		})
	}
	return op
}

func (d siteDoc) toDomain() workforce.Site {
	s := workforce.Site{
		ID:                  workforce.SiteID(d.ID),
		ClientID:            workforce.ClientID(d.ClientID),
		Name:                d.Name,
		Address:             d.Address,
		RequiredTrades:      d.RequiredTrades,
		Capacity:            workforce.CapacityFromMax(d.MaxOperatives),
		FulfillmentRequired: d.FulfillmentRequired,
		ProjectType:         d.ProjectType,
	}
	s.Start, _ = generic.ParseDate(d.StartDate)
	s.End, _ = generic.ParseDate(d.EndDate)
	return s
}

func (d clientDoc) toDomain() workforce.Client {
	c := workforce.Client{ID: workforce.ClientID(d.ID), Name: d.Name}
	for _, jt := range d.JobTypes {
		// Unparsable money reads as zero, matching a failed lookup.
		pay, _ := decimal.NewFromString(jt.PayRate)
		cost, _ := decimal.NewFromString(jt.ClientCost)
		c.JobTypes = append(c.JobTypes, workforce.JobType{Name: jt.Name, PayRate: pay, ClientCost: cost})
	}
	return c
}

func (d assignmentDoc) toDomain() workforce.Assignment {
	a := workforce.Assignment{
		ID:          workforce.AssignmentID(d.ID),
		OperativeID: workforce.OperativeID(d.OperativeID),
		SiteID:      workforce.SiteID(d.SiteID),
		Status:      workforce.AssignmentStatus(d.Status),
	}
	a.Period.Start, _ = generic.ParseDate(d.StartDate)
	a.Period.End, _ = generic.ParseDate(d.EndDate)
	a.CreatedAt, _ = generic.ParseDate(d.CreatedAt)
	return a
}

// =============================================================================
// READER
// =============================================================================

// findAll decodes every document of c in first-insert order.
func findAll[T any](ctx context.Context, c *mongo.Collection) ([]T, error) {
	cur, err := c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []T
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListOperatives(ctx context.Context) ([]workforce.Operative, error) {
	docs, err := findAll[operativeDoc](ctx, s.operatives)
	if err != nil {
		return nil, fmt.Errorf("list operatives: %w", err)
	}
	out := make([]workforce.Operative, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) ListSites(ctx context.Context) ([]workforce.Site, error) {
	docs, err := findAll[siteDoc](ctx, s.sites)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	out := make([]workforce.Site, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) ListAssignments(ctx context.Context) ([]workforce.Assignment, error) {
	docs, err := findAll[assignmentDoc](ctx, s.assignments)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	out := make([]workforce.Assignment, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *Store) ListClients(ctx context.Context) ([]workforce.Client, error) {
	docs, err := findAll[clientDoc](ctx, s.clients)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]workforce.Client, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// =============================================================================
// WRITER
// =============================================================================

// CreateAssignment inserts a; an existing id is an error, as in sqlite.
func (s *Store) CreateAssignment(ctx context.Context, a workforce.Assignment) error {
	_, err := s.assignments.InsertOne(ctx, assignmentDoc{
		ID:          string(a.ID),
		OperativeID: string(a.OperativeID),
		SiteID:      string(a.SiteID),
		StartDate:   a.Period.Start.String(),
		EndDate:     a.Period.End.String(),
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.String(),
		Seq:         time.Now().UnixNano(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("insert assignment %s: id already exists: %w", a.ID, err)
	}
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *Store) UpdateAssignmentStatus(ctx context.Context, id workforce.AssignmentID, status workforce.AssignmentStatus) error {
	res, err := s.assignments.UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$set": bson.M{"status": string(status)}})
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	if res.MatchedCount == 0 {
		return generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id workforce.AssignmentID) error {
	res, err := s.assignments.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if res.DeletedCount == 0 {
		return generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	return nil
}

func (s *Store) UpsertCertificates(ctx context.Context, operativeID workforce.OperativeID, certs []workforce.Certificate) error {
	res, err := s.operatives.UpdateOne(ctx,
		bson.M{"_id": string(operativeID)},
		bson.M{"$set": bson.M{"certificates": toCertificateDocs(certs), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("update certificates: %w", err)
	}
	if res.MatchedCount == 0 {
		return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	return nil
}

// UpsertRestriction replaces a restriction with the same id in place, or
// appends it.
func (s *Store) UpsertRestriction(ctx context.Context, operativeID workforce.OperativeID, r workforce.Restriction) error {
	var doc operativeDoc
	err := s.operatives.FindOne(ctx, bson.M{"_id": string(operativeID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	if err != nil {
		return fmt.Errorf("read operative: %w", err)
	}

	merged := workforce.UpsertRestriction(workforce.Operative{Restrictions: fromRestrictionDocs(doc.Restrictions)}, r)
	_, err = s.operatives.UpdateOne(ctx,
		bson.M{"_id": string(operativeID)},
		bson.M{"$set": bson.M{"restrictions": toRestrictionDocs(merged.Restrictions), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("write restrictions: %w", err)
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) SaveOperative(ctx context.Context, o workforce.Operative) error {
	return s.upsert(ctx, s.operatives, string(o.ID), operativeDoc{
		ID:             string(o.ID),
		FirstName:      o.FirstName,
		LastName:       o.LastName,
		Email:          o.Email,
		Phone:          o.Phone,
		EmploymentType: o.EmploymentType,
		Trade:          o.Trade,
		Certificates:   toCertificateDocs(o.Certificates),
		Restrictions:   toRestrictionDocs(o.Restrictions),
	})
}

func (s *Store) SaveSite(ctx context.Context, site workforce.Site) error {
	trades := site.RequiredTrades
	if trades == nil {
		trades = []string{}
	}
	return s.upsert(ctx, s.sites, string(site.ID), siteDoc{
		ID:                  string(site.ID),
		ClientID:            string(site.ClientID),
		Name:                site.Name,
		Address:             site.Address,
		StartDate:           site.Start.String(),
		EndDate:             site.End.String(),
		RequiredTrades:      trades,
		MaxOperatives:       site.Capacity.Max(),
		FulfillmentRequired: site.FulfillmentRequired,
		ProjectType:         site.ProjectType,
	})
}

func (s *Store) SaveClient(ctx context.Context, c workforce.Client) error {
	doc := clientDoc{ID: string(c.ID), Name: c.Name, JobTypes: make([]jobTypeDoc, 0, len(c.JobTypes))}
	for _, jt := range c.JobTypes {
		doc.JobTypes = append(doc.JobTypes, jobTypeDoc{Name: jt.Name, PayRate: jt.PayRate.String(), ClientCost: jt.ClientCost.String()})
	}
	return s.upsert(ctx, s.clients, string(c.ID), doc)
}

func (s *Store) Reset(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.assignments, s.sites, s.clients, s.operatives} {
		if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("failed to clear %s: %w", c.Name(), err)
		}
	}
	return nil
}

// upsert replaces the document with id, stamping seq on first insert so
// lists come back in insertion order.
func (s *Store) upsert(ctx context.Context, c *mongo.Collection, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.Name(), id, err)
	}
	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("encode %s %s: %w", c.Name(), id, err)
	}
	delete(fields, "_id")
	fields["updated_at"] = time.Now().UTC()

	_, err = c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields, "$setOnInsert": bson.M{"seq": time.Now().UnixNano()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", c.Name(), id, err)
	}
	return nil
}
