package fixtures

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/fossabot/failmap/internal/domain"
	"github.com/fossabot/failmap/internal/service/auth"
	"github.com/fossabot/failmap/internal/store"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embedded embed.FS

// ErrUnknownFixture is returned when a name is neither embedded nor a readable file.
var ErrUnknownFixture = errors.New("unknown fixture")

// Passwords hashes fixture passwords and checks existing hashes.
type Passwords interface {
	auth.PasswordHasher
	auth.PasswordVerifier
}

// Summary counts the records a load created.
type Summary struct {
	Organizations int `json:"organizations"`
	URLs          int `json:"urls"`
	Endpoints     int `json:"endpoints"`
	Scans         int `json:"scans"`
	Promises      int `json:"promises"`
	Ratings       int `json:"ratings"`
	Users         int `json:"users"`
}

// Names lists the embedded fixtures.
func Names() []string {
	entries, _ := fs.ReadDir(embedded, "data")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Read returns the raw YAML of an embedded fixture, or of the file at name.
func Read(name string) ([]byte, error) {
	base := strings.TrimSuffix(name, ".yaml")
	if data, err := embedded.ReadFile("data/" + base + ".yaml"); err == nil {
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFixture, name)
	}
	return data, nil
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &doc, nil
}

// Loader writes fixture documents into the stores.
type Loader struct {
	db        *bun.DB
	stores    store.Stores
	passwords Passwords
	logger    *slog.Logger
}

// NewLoader creates a Loader. When db is set the whole fixture is loaded in
// one transaction.
func NewLoader(db *bun.DB, stores store.Stores, passwords Passwords, logger *slog.Logger) *Loader {
	return &Loader{
		db:        db,
		stores:    stores,
		passwords: passwords,
		logger:    logger.With("component", "fixtures"),
	}
}

// Load reads the named fixture and loads it. Loading the same fixture twice
// creates nothing the second time.
func (l *Loader) Load(ctx context.Context, name string) (*Summary, error) {
	data, err := Read(name)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	var sum *Summary
	if l.db == nil {
		sum, err = l.loadDocument(ctx, l.stores, doc)
	} else {
		err = store.RunInTransaction(ctx, l.db, func(ctx context.Context, tx bun.Tx) error {
			var txErr error
			sum, txErr = l.loadDocument(ctx, l.stores.WithTx(tx), doc)
			return txErr
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fixture %s: %w", name, err)
	}

	l.logger.Info("fixture loaded",
		slog.String("fixture", name),
		slog.Int("organizations", sum.Organizations),
		slog.Int("urls", sum.URLs),
		slog.Int("endpoints", sum.Endpoints),
		slog.Int("scans", sum.Scans),
		slog.Int("users", sum.Users))
	return sum, nil
}

func (l *Loader) loadDocument(ctx context.Context, stores store.Stores, doc *Document) (*Summary, error) {
	sum := &Summary{}
	for _, t := range doc.OrganizationTypes {
		if _, err := stores.Organizations.EnsureType(ctx, t.Name); err != nil {
			return nil, fmt.Errorf("organization type %q: %w", t.Name, err)
		}
	}
	for _, rec := range doc.Organizations {
		if err := l.loadOrganization(ctx, stores, rec, sum); err != nil {
			return nil, fmt.Errorf("organization %q: %w", rec.Name, err)
		}
	}
	for _, rec := range doc.Users {
		if err := l.loadUser(ctx, stores, rec, sum); err != nil {
			return nil, fmt.Errorf("user %q: %w", rec.Username, err)
		}
	}
	return sum, nil
}

// findOrganization looks up an organization by name, dead ones included.
func findOrganization(ctx context.Context, orgs store.OrganizationStore, name string) (*domain.Organization, error) {
	found, err := orgs.List(ctx, store.OrganizationFilter{Names: []string{name}, IncludeDead: true})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, store.ErrOrganizationNotFound
	}
	return found[0], nil
}

func (l *Loader) loadOrganization(ctx context.Context, stores store.Stores, rec OrganizationRecord, sum *Summary) error {
	typeName := rec.Type
	if typeName == "" {
		typeName = "municipality"
	}
	typ, err := stores.Organizations.EnsureType(ctx, typeName)
	if err != nil {
		return err
	}

	org, err := findOrganization(ctx, stores.Organizations, rec.Name)
	switch {
	case errors.Is(err, store.ErrOrganizationNotFound):
		org, err = domain.NewOrganization(rec.Name, typ.ID, rec.Country)
		if err != nil {
			return err
		}
		if rec.CreatedOn != nil {
			org.CreatedOn = rec.CreatedOn.UTC()
		}
		org.TwitterHandle = rec.TwitterHandle
		applyDeath(org, rec)
		if err := stores.Organizations.Create(ctx, org); err != nil {
			return err
		}
		sum.Organizations++
	case err != nil:
		return err
	default:
		org.TypeID = typ.ID
		org.Country = strings.ToUpper(strings.TrimSpace(rec.Country))
		org.TwitterHandle = rec.TwitterHandle
		applyDeath(org, rec)
		if err := stores.Organizations.Update(ctx, org); err != nil {
			return err
		}
	}

	for _, u := range rec.URLs {
		if err := loadURL(ctx, stores, org, u, sum); err != nil {
			return fmt.Errorf("url %q: %w", u.URL, err)
		}
	}
	if err := loadPromises(ctx, stores, org, rec.Promises, sum); err != nil {
		return err
	}
	return loadRatings(ctx, stores, org, rec.Ratings, sum)
}

func applyDeath(org *domain.Organization, rec OrganizationRecord) {
	if !rec.IsDead || org.IsDead {
		return
	}
	since := time.Now().UTC()
	if rec.IsDeadSince != nil {
		since = *rec.IsDeadSince
	}
	org.Kill(since, rec.IsDeadReason)
}

func loadURL(ctx context.Context, stores store.Stores, org *domain.Organization, rec URLRecord, sum *Summary) error {
	host, err := domain.NormalizeURL(rec.URL)
	if err != nil {
		return err
	}

	u, err := stores.URLs.GetByURL(ctx, host)
	switch {
	case errors.Is(err, store.ErrURLNotFound):
		u, err = domain.NewURL(host, org.ID)
		if err != nil {
			return err
		}
		u.IsDead = rec.IsDead
		u.NotResolvable = rec.NotResolvable
		if err := stores.URLs.Create(ctx, u); err != nil {
			return err
		}
		sum.URLs++
	case err != nil:
		return err
	default:
		if err := stores.URLs.AddOrganization(ctx, u.ID, org.ID); err != nil {
			return err
		}
		if u.IsDead != rec.IsDead || u.NotResolvable != rec.NotResolvable {
			u.IsDead = rec.IsDead
			u.NotResolvable = rec.NotResolvable
			if err := stores.URLs.Update(ctx, u); err != nil {
				return err
			}
		}
	}

	for _, e := range rec.Endpoints {
		if err := loadEndpoint(ctx, stores, u, e, sum); err != nil {
			return fmt.Errorf("endpoint %s/%d: %w", e.Protocol, e.Port, err)
		}
	}
	return nil
}

func loadEndpoint(ctx context.Context, stores store.Stores, u *domain.URL, rec EndpointRecord, sum *Summary) error {
	ipVersion := rec.IPVersion
	if ipVersion == 0 {
		ipVersion = 4
	}

	e, err := stores.Endpoints.Find(ctx, u.ID, rec.Protocol, rec.Port, ipVersion)
	switch {
	case errors.Is(err, store.ErrEndpointNotFound):
		e = &domain.Endpoint{
			URLID:        u.ID,
			Protocol:     rec.Protocol,
			Port:         rec.Port,
			IPVersion:    ipVersion,
			IsDead:       rec.IsDead,
			DiscoveredOn: u.CreatedOn,
		}
		if err := stores.Endpoints.Create(ctx, e); err != nil {
			return err
		}
		sum.Endpoints++
	case err != nil:
		return err
	case e.IsDead != rec.IsDead:
		e.IsDead = rec.IsDead
		if err := stores.Endpoints.Update(ctx, e); err != nil {
			return err
		}
	}

	scans := append([]ScanRecord(nil), rec.Scans...)
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].RatingDeterminedOn.Before(scans[j].RatingDeterminedOn)
	})
	for _, s := range scans {
		latest, err := stores.Scans.Latest(ctx, e.ID, s.Type)
		if err != nil && !errors.Is(err, store.ErrScanNotFound) {
			return err
		}
		if latest != nil && !latest.RatingDeterminedOn.Before(s.RatingDeterminedOn) {
			continue
		}
		scan, err := domain.NewScan(e.ID, s.Type, s.Rating == domain.RatingTrue, s.Explanation)
		if err != nil {
			return err
		}
		scan.RatingDeterminedOn = s.RatingDeterminedOn.UTC()
		scan.LastScanMoment = s.LastScanMoment.UTC()
		if scan.LastScanMoment.IsZero() {
			scan.LastScanMoment = scan.RatingDeterminedOn
		}
		if err := stores.Scans.Record(ctx, scan); err != nil {
			return err
		}
		sum.Scans++
	}
	return nil
}

func loadPromises(ctx context.Context, stores store.Stores, org *domain.Organization, recs []PromiseRecord, sum *Summary) error {
	if len(recs) == 0 {
		return nil
	}
	existing, err := stores.Promises.ListByOrganization(ctx, org.ID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if containsPromise(existing, rec) {
			continue
		}
		p := &domain.Promise{
			OrganizationID: org.ID,
			CreatedOn:      rec.CreatedOn.UTC(),
			ExpiresOn:      rec.ExpiresOn.UTC(),
			Notes:          rec.Notes,
		}
		if err := stores.Promises.Create(ctx, p); err != nil {
			return err
		}
		sum.Promises++
	}
	return nil
}

func containsPromise(existing []*domain.Promise, rec PromiseRecord) bool {
	for _, p := range existing {
		if p.CreatedOn.Equal(rec.CreatedOn) && p.ExpiresOn.Equal(rec.ExpiresOn) {
			return true
		}
	}
	return false
}

func loadRatings(ctx context.Context, stores store.Stores, org *domain.Organization, recs []RatingRecord, sum *Summary) error {
	if len(recs) == 0 {
		return nil
	}
	existing, err := stores.Ratings.ListOrganizationRatings(ctx, org.ID)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(existing))
	for _, r := range existing {
		known[r.When.UnixMicro()] = true
	}
	for _, rec := range recs {
		if known[rec.When.UnixMicro()] {
			continue
		}
		r := &domain.OrganizationRating{
			OrganizationID: org.ID,
			Rating:         rec.Rating,
			Points:         domain.Points{High: rec.High, Medium: rec.Medium, Low: rec.Low},
			When:           rec.When.UTC(),
			Calculation:    []byte(rec.Calculation),
		}
		if err := stores.Ratings.SaveOrganizationRating(ctx, r); err != nil {
			return err
		}
		known[rec.When.UnixMicro()] = true
		sum.Ratings++
	}
	return nil
}

func (l *Loader) loadUser(ctx context.Context, stores store.Stores, rec UserRecord, sum *Summary) error {
	active := rec.IsActive == nil || *rec.IsActive

	user, err := stores.Users.GetByUsername(ctx, rec.Username)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		hash, err := l.passwords.Hash(rec.Password)
		if err != nil {
			return err
		}
		user, err = domain.NewUser(rec.Username, hash)
		if err != nil {
			return err
		}
		user.IsStaff = rec.IsStaff
		user.IsSuperuser = rec.IsSuperuser
		user.IsActive = active
		if err := stores.Users.Create(ctx, user); err != nil {
			return err
		}
		sum.Users++
		return nil
	case err != nil:
		return err
	}

	if l.passwords.Compare(user.HashedPassword, rec.Password) != nil {
		hash, err := l.passwords.Hash(rec.Password)
		if err != nil {
			return err
		}
		user.HashedPassword = hash
	}
	user.IsStaff = rec.IsStaff
	user.IsSuperuser = rec.IsSuperuser
	user.IsActive = active
	return stores.Users.Update(ctx, user)
}
