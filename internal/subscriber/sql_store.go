package subscriber

import (
	"context"
	"database/sql"
	"fmt"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/db"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/facet"
)

const Schema = `
create table if not exists subscriber (
	id integer primary key
);

create table if not exists subscriber_facet (
	subscriber_id integer not null references subscriber(id),
	token text not null,
	primary key (subscriber_id, token)
);
`

const (
	report_db_query      = "db.query"
	report_unknown_token = "sql-store.unknown-token"
)

// SQLStore is a Store persisted in sqlite or libsql, only selections are
// stored, catalog snapshots are rebuilt after a restart.
type SQLStore struct {
	db     *sql.DB
	makeTx db.MakeTx
	tel    telemetry.API
}

func NewSQLStore(database *sql.DB, tel telemetry.API) SQLStore {
	assert.NotNil(database)
	assert.NotNil(tel)

	return SQLStore{
		db:     database,
		makeTx: db.NewMakeTx(database),
		tel:    telemetry.NewScopedAPI("subscriber", tel),
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s SQLStore) ensure(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx, "insert into subscriber (id) values (?) on conflict (id) do nothing", id)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ensure subscriber", id)
		return err
	}
	return nil
}

func (s SQLStore) load(ctx context.Context, q querier, id int64) (Selection, error) {
	rows, err := q.QueryContext(ctx, "select token from subscriber_facet where subscriber_id = ?", id)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "select facets", id)
		return Selection{}, err
	}
	defer rows.Close()

	var sel Selection
	for rows.Next() {
		var token string
		err = rows.Scan(&token)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "scan facet", id)
			return Selection{}, err
		}
		ref, err := facet.Parse(token)
		if err != nil {
			s.tel.ReportWarning(report_unknown_token, err, id)
			continue
		}
		sel.Toggle(ref)
	}
	return sel, rows.Err()
}

func (s SQLStore) Selection(ctx context.Context, id int64) (Selection, error) {
	err := s.ensure(ctx, s.db, id)
	if err != nil {
		return Selection{}, err
	}
	return s.load(ctx, s.db, id)
}

func (s SQLStore) Toggle(ctx context.Context, id int64, ref facet.Ref) (Selection, error) {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return Selection{}, err
	}
	defer discard()

	err = s.ensure(ctx, tx, id)
	if err != nil {
		return Selection{}, err
	}

	res, err := tx.ExecContext(
		ctx,
		"delete from subscriber_facet where subscriber_id = ? and token = ?",
		id, ref.Token(),
	)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "delete facet", id, ref.Token())
		return Selection{}, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "rows affected", id)
		return Selection{}, err
	}
	if removed == 0 {
		_, err = tx.ExecContext(
			ctx,
			"insert into subscriber_facet (subscriber_id, token) values (?, ?)",
			id, ref.Token(),
		)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "insert facet", id, ref.Token())
			return Selection{}, err
		}
	}

	sel, err := s.load(ctx, tx, id)
	if err != nil {
		return Selection{}, err
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err))
		return Selection{}, err
	}
	return sel, nil
}

func (s SQLStore) Subscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "select id from subscriber order by id")
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "select subscribers")
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		err = rows.Scan(&id)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "scan subscriber")
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
