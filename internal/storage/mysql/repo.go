package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"rankd/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStrList(p *[]string) any {
	if p == nil {
		return nil
	}
	b, _ := json.Marshal(*p)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- companies ----

func (r *Repo) UpsertCompany(ctx context.Context, c domain.CompanyUpsert) error {
	_, err := r.db.ExecContext(ctx, upsertCompanySQL, c.PlaceID, c.Name, valStr(c.URL))
	return err
}

func scanCompany(row interface{ Scan(...any) error }) (domain.Company, error) {
	var c domain.Company
	var url sql.NullString
	var servicesJSON sql.NullString
	if err := row.Scan(&c.PlaceID, &c.Name, &url, &c.IsOurCompany, &servicesJSON, &c.CreatedAt); err != nil {
		return domain.Company{}, err
	}
	if url.Valid {
		u := url.String
		c.URL = &u
	}
	if servicesJSON.Valid && servicesJSON.String != "" {
		_ = json.Unmarshal([]byte(servicesJSON.String), &c.Services)
	}
	return c, nil
}

func (r *Repo) GetCompany(ctx context.Context, placeID string) (domain.Company, error) {
	c, err := scanCompany(r.db.QueryRowContext(ctx, getCompanySQL, placeID))
	if err == sql.ErrNoRows {
		return domain.Company{}, domain.ErrNotFound
	}
	return c, err
}

func (r *Repo) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	rows, err := r.db.QueryContext(ctx, listCompaniesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateCompany(ctx context.Context, placeID string, p domain.CompanyPatch) (domain.Company, error) {
	if _, err := r.GetCompany(ctx, placeID); err != nil {
		return domain.Company{}, err
	}
	_, err := r.db.ExecContext(ctx, updateCompanySQL,
		valStr(p.Name), valStr(p.URL), valStrList(p.Services), placeID)
	if err != nil {
		return domain.Company{}, err
	}
	return r.GetCompany(ctx, placeID)
}

func (r *Repo) SetOurCompany(ctx context.Context, placeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, clearOurCompanySQL); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, setOurCompanySQL, placeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit()
}

func (r *Repo) OurCompany(ctx context.Context) (*domain.Company, error) {
	rows, err := r.db.QueryContext(ctx, ourCompanySQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holders []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		holders = append(holders, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(holders) {
	case 0:
		return nil, nil
	case 1:
		return &holders[0], nil
	default:
		return nil, domain.ErrDataIntegrity
	}
}

// ---- reviews ----

func (r *Repo) ExistingReviewIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT review_id FROM reviews WHERE review_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *Repo) InsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*8)
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?)")
		var reviewDate any
		if rv.ReviewDate != nil {
			reviewDate = *rv.ReviewDate
		}
		args = append(args,
			rv.ReviewID,
			rv.PlaceID,
			valStr(rv.Author),
			rv.Rating,
			valStr(rv.Text),
			reviewDate,
			rv.HasResponse,
			rv.ScrapedAt,
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) ListReviews(ctx context.Context, placeID string) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, listReviewsSQL, placeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var author, text sql.NullString
		var reviewDate sql.NullTime
		if err := rows.Scan(
			&rv.ReviewID,
			&rv.PlaceID,
			&author,
			&rv.Rating,
			&text,
			&reviewDate,
			&rv.HasResponse,
			&rv.ScrapedAt,
		); err != nil {
			return nil, err
		}
		if author.Valid {
			a := author.String
			rv.Author = &a
		}
		if text.Valid {
			t := text.String
			rv.Text = &t
		}
		if reviewDate.Valid {
			d := reviewDate.Time
			rv.ReviewDate = &d
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ---- metadata ----

func (r *Repo) UpsertMetadata(ctx context.Context, m domain.ReviewMetadata) error {
	_, err := r.db.ExecContext(ctx, upsertMetadataSQL,
		m.PlaceID, m.TotalReviews, m.ScrapedReviews, valF64(m.CalculatedAvg), m.LastScraped)
	return err
}

func (r *Repo) GetMetadata(ctx context.Context, placeID string) (*domain.ReviewMetadata, error) {
	var m domain.ReviewMetadata
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx, getMetadataSQL, placeID).Scan(
		&m.PlaceID, &m.TotalReviews, &m.ScrapedReviews, &avg, &m.LastScraped)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		a := avg.Float64
		m.CalculatedAvg = &a
	}
	return &m, nil
}

// ---- groups ----

func scanGroup(row interface{ Scan(...any) error }) (domain.CompanyGroup, error) {
	var g domain.CompanyGroup
	var idsJSON sql.NullString
	if err := row.Scan(&g.ID, &g.Name, &idsJSON, &g.CreatedAt); err != nil {
		return domain.CompanyGroup{}, err
	}
	if idsJSON.Valid && idsJSON.String != "" {
		_ = json.Unmarshal([]byte(idsJSON.String), &g.CompanyIDs)
	}
	return g, nil
}

func (r *Repo) CreateGroup(ctx context.Context, name string, companyIDs []string) (domain.CompanyGroup, error) {
	if companyIDs == nil {
		companyIDs = []string{}
	}
	ids, _ := json.Marshal(companyIDs)
	res, err := r.db.ExecContext(ctx, insertGroupSQL, name, string(ids))
	if err != nil {
		return domain.CompanyGroup{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CompanyGroup{}, err
	}
	return r.GetGroup(ctx, id)
}

func (r *Repo) GetGroup(ctx context.Context, id int64) (domain.CompanyGroup, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, getGroupSQL, id))
	if err == sql.ErrNoRows {
		return domain.CompanyGroup{}, domain.ErrNotFound
	}
	return g, err
}

func (r *Repo) ListGroups(ctx context.Context) ([]domain.CompanyGroup, error) {
	rows, err := r.db.QueryContext(ctx, listGroupsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CompanyGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateGroup(ctx context.Context, id int64, p domain.GroupPatch) (domain.CompanyGroup, error) {
	if _, err := r.GetGroup(ctx, id); err != nil {
		return domain.CompanyGroup{}, err
	}
	if _, err := r.db.ExecContext(ctx, updateGroupSQL,
		valStr(p.Name), valStrList(p.CompanyIDs), id); err != nil {
		return domain.CompanyGroup{}, err
	}
	return r.GetGroup(ctx, id)
}

func (r *Repo) DeleteGroup(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteGroupSQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- snapshots ----

func (r *Repo) InsertSnapshot(ctx context.Context, s domain.ComparisonSnapshot) error {
	_, err := r.db.ExecContext(ctx, insertSnapshotSQL,
		s.ID, s.Name, string(s.Rankings), s.CreatedAt)
	return err
}

func (r *Repo) GetSnapshot(ctx context.Context, id string) (domain.ComparisonSnapshot, error) {
	var s domain.ComparisonSnapshot
	var rankings []byte
	err := r.db.QueryRowContext(ctx, getSnapshotSQL, id).Scan(
		&s.ID, &s.Name, &rankings, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.ComparisonSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ComparisonSnapshot{}, err
	}
	s.Rankings = append([]byte(nil), rankings...)
	return s, nil
}

func (r *Repo) ListSnapshots(ctx context.Context) ([]domain.SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx, listSnapshotsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SnapshotInfo
	for rows.Next() {
		var s domain.SnapshotInfo
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
