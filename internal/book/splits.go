package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wesm/gcg/internal/textutil"
)

// Columns shared by every split query; see scanSplits.
const splitSelect = `
	SELECT s.guid, s.tx_guid, s.account_guid, s.memo,
	       s.value_num, s.value_denom, s.quantity_num, s.quantity_denom,
	       COALESCE(t.post_date, ''), COALESCE(t.description, ''), COALESCE(c.mnemonic, '')
	FROM splits s
	JOIN transactions t ON t.guid = s.tx_guid
	LEFT JOIN commodities c ON c.guid = t.currency_guid`

// AccountSplits returns the splits posted to the account at index, ordered
// by post date, transaction GUID, then storage order.
func (s *Store) AccountSplits(ctx context.Context, index int) ([]*Split, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if index < 0 || index >= s.tree.Len() {
		return nil, fmt.Errorf("account index %d out of range", index)
	}
	guid := s.tree.At(index).GUID
	rows, err := s.db.QueryContext(ctx, splitSelect+`
		WHERE s.account_guid = ?
		ORDER BY t.post_date, t.guid, s.rowid`, guid)
	if err != nil {
		return nil, fmt.Errorf("splits for %s: %w", guid, err)
	}
	defer rows.Close()
	return s.scanSplits(rows)
}

// TransactionSplits returns every split of a transaction in storage order.
func (s *Store) TransactionSplits(ctx context.Context, txGUID string) ([]*Split, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, splitSelect+`
		WHERE s.tx_guid = ?
		ORDER BY s.rowid`, txGUID)
	if err != nil {
		return nil, fmt.Errorf("splits of transaction %s: %w", txGUID, err)
	}
	defer rows.Close()
	return s.scanSplits(rows)
}

// Split returns a single split by GUID.
func (s *Store) Split(ctx context.Context, guid string) (*Split, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, splitSelect+` WHERE s.guid = ?`, guid)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", guid, err)
	}
	defer rows.Close()
	splits, err := s.scanSplits(rows)
	if err != nil {
		return nil, err
	}
	if len(splits) == 0 {
		return nil, fmt.Errorf("split %s: %w", guid, ErrNotFound)
	}
	return splits[0], nil
}

// Transaction returns a transaction header by GUID.
func (s *Store) Transaction(ctx context.Context, guid string) (*Transaction, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var postDate, desc, cur string
	err := s.db.QueryRowContext(ctx, `
		SELECT t.guid, COALESCE(t.post_date, ''), COALESCE(t.description, ''), COALESCE(c.mnemonic, '')
		FROM transactions t
		LEFT JOIN commodities c ON c.guid = t.currency_guid
		WHERE t.guid = ?`, guid).Scan(&guid, &postDate, &desc, &cur)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", guid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", guid, err)
	}
	return s.intern(guid, postDate, desc, cur), nil
}

func (s *Store) scanSplits(rows *sql.Rows) ([]*Split, error) {
	var out []*Split
	for rows.Next() {
		var (
			sp                     Split
			txGUID                 string
			vNum, vDen, qNum, qDen int64
			postDate, desc, cur    string
		)
		if err := rows.Scan(&sp.GUID, &txGUID, &sp.AccountGUID, &sp.Memo,
			&vNum, &vDen, &qNum, &qDen, &postDate, &desc, &cur); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		sp.Memo = textutil.EnsureUTF8(sp.Memo)
		sp.Value = ratio(vNum, vDen)
		sp.Quantity = ratio(qNum, qDen)
		sp.Tx = s.intern(txGUID, postDate, desc, cur)
		if idx, ok := s.tree.Index(sp.AccountGUID); ok {
			sp.Account = idx
		} else {
			sp.Account = -1
		}
		out = append(out, &sp)
	}
	return out, rows.Err()
}

// intern returns the shared *Transaction for guid, creating it on first use.
// A post date that does not parse leaves PostDate zero; the row is kept.
func (s *Store) intern(guid, postDate, desc, cur string) *Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.txs[guid]; ok {
		return tx
	}
	tx := &Transaction{GUID: guid, Description: textutil.EnsureUTF8(desc), Currency: cur}
	if postDate != "" {
		if d, err := parseTime(postDate); err == nil {
			tx.PostDate = d
		} else {
			s.logger.Debug("unparseable post date", "tx", guid, "value", postDate)
		}
	}
	s.txs[guid] = tx
	return tx
}

// Notes returns the notes text of a transaction, or "" when it has none or
// the book cannot store notes.
func (s *Store) Notes(ctx context.Context, txGUID string) (string, error) {
	caps := s.info.Capabilities
	if !caps.NotesSupported() {
		return "", nil
	}
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	s.mu.Lock()
	if n, ok := s.notes[txGUID]; ok {
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	var notes sql.NullString
	var err error
	if caps.HasNotesColumn {
		err = s.db.QueryRowContext(ctx, `SELECT notes FROM transactions WHERE guid = ?`, txGUID).Scan(&notes)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT string_val FROM slots WHERE obj_guid = ? AND name = 'notes' LIMIT 1`, txGUID).Scan(&notes)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("notes for %s: %w", txGUID, err)
	}

	text := textutil.EnsureUTF8(notes.String)
	s.mu.Lock()
	s.notes[txGUID] = text
	s.mu.Unlock()
	return text, nil
}
